// Package validator classifies candidate URLs as allowed post or media URLs.
// Both predicates are pure and never fail; anything not explicitly allowed is rejected.
package validator

import (
	"net/url"
	"regexp"
	"strings"
)

// PostHosts are the only hosts a post URL may point at.
var PostHosts = []string{"instagram.com", "www.instagram.com"}

// MediaDomains are the CDN domains a media URL may point at, matched on a label boundary.
var MediaDomains = []string{"cdninstagram.com", "fbcdn.net", "instagram.com"}

// Post, reel, story and IGTV routes. Prefix anchored: trailing segments are allowed.
var postPathPattern = regexp.MustCompile(`^/(?:p|reel|stories|tv)/[\w-]+(?:/|$)`)

// IsValidPostURL reports whether candidate is an https Instagram post, reel, story or IGTV URL.
func IsValidPostURL(candidate string) bool {
	u, ok := parseAbsolute(candidate)
	if !ok {
		return false
	}

	host := normalizeHost(u.Hostname())
	allowed := false
	for _, h := range PostHosts {
		if host == h {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	if hasUnsafeSegments(u.Path) {
		return false
	}
	return postPathPattern.MatchString(u.EscapedPath())
}

// IsValidMediaURL reports whether candidate is an https URL on one of the allowed CDN domains.
// "evilcdninstagram.com" does not match "cdninstagram.com"; "scontent.cdninstagram.com" does.
func IsValidMediaURL(candidate string) bool {
	u, ok := parseAbsolute(candidate)
	if !ok {
		return false
	}
	if u.User != nil {
		return false
	}

	return HasAllowedMediaHost(u.Hostname())
}

// HasAllowedMediaHost reports whether host equals or is a subdomain of one of MediaDomains.
func HasAllowedMediaHost(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, domain := range MediaDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func parseAbsolute(candidate string) (*url.URL, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return nil, false
	}
	// url.Parse lowercases the scheme.
	if u.Scheme != "https" || u.Host == "" || u.Opaque != "" {
		return nil, false
	}
	if port := u.Port(); port != "" && port != "443" {
		return nil, false
	}
	return u, true
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

// hasUnsafeSegments reports empty or dot segments; only a trailing slash may leave an empty one.
func hasUnsafeSegments(p string) bool {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, seg := range segments {
		if seg == "." || seg == ".." {
			return true
		}
		if seg == "" && i != len(segments)-1 {
			return true
		}
	}
	return false
}
