package validator

import "testing"

func TestIsValidPostURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"post", "https://www.instagram.com/p/ABC123/", true},
		{"post without www", "https://instagram.com/p/ABC123", true},
		{"reel", "https://www.instagram.com/reel/Cx_9-aB/", true},
		{"story", "https://www.instagram.com/stories/someuser/3141592653/", true},
		{"igtv", "https://www.instagram.com/tv/B1a2c3/", true},
		{"uppercase host", "https://WWW.Instagram.COM/p/ABC123/", true},
		{"query string", "https://www.instagram.com/p/ABC123/?igsh=xyz", true},
		{"trailing dot host", "https://www.instagram.com./p/ABC123/", true},

		{"look-alike host", "https://instagram.evil.com/p/ABC123/", false},
		{"subdomain", "https://m.instagram.com/p/ABC123/", false},
		{"suffix host", "https://notinstagram.com/p/ABC123/", false},
		{"plain http", "http://www.instagram.com/p/ABC123/", false},
		{"ftp", "ftp://www.instagram.com/p/ABC123/", false},
		{"profile path", "https://www.instagram.com/someuser/", false},
		{"empty id", "https://www.instagram.com/p/", false},
		{"bad id chars", "https://www.instagram.com/p/$$$/", false},
		{"explore", "https://www.instagram.com/explore/tags/go/", false},
		{"dot segments", "https://www.instagram.com/p/ABC/../../admin", false},
		{"empty segment before id", "https://www.instagram.com/p//ABC", false},
		{"double slash after id", "https://www.instagram.com/p/ABC//", false},
		{"leading double slash", "https://www.instagram.com//p/ABC", false},
		{"single dot segment", "https://www.instagram.com/p/./ABC", false},
		{"odd port", "https://www.instagram.com:8443/p/ABC123/", false},
		{"relative", "/p/ABC123/", false},
		{"garbage", "not a url", false},
		{"empty", "", false},
		{"control chars", "https://www.instagram.com/p/\x00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPostURL(tt.url); got != tt.want {
				t.Errorf("IsValidPostURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsValidPostURL_ArbitraryIdentifiers(t *testing.T) {
	ids := []string{"a", "Z", "0", "_", "-", "abc_DEF-123", "CvXyZ0a1b2c"}
	routes := []string{"p", "reel", "stories", "tv"}

	for _, route := range routes {
		for _, id := range ids {
			url := "https://www.instagram.com/" + route + "/" + id + "/"
			if !IsValidPostURL(url) {
				t.Errorf("IsValidPostURL(%q) = false, want true", url)
			}
		}
	}
}

func TestIsValidMediaURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"cdn video", "https://scontent.cdninstagram.com/x.mp4", true},
		{"cdn edge", "https://scontent-lhr8-1.cdninstagram.com/v/t51/abc.jpg?stp=dst", true},
		{"bare cdn", "https://cdninstagram.com/x.jpg", true},
		{"fbcdn", "https://video.xx.fbcdn.net/v/t42/abc.mp4", true},
		{"instagram host", "https://www.instagram.com/media/x.jpg", true},
		{"uppercase", "https://SCONTENT.CDNINSTAGRAM.COM/x.mp4", true},
		{"explicit 443", "https://scontent.cdninstagram.com:443/x.mp4", true},

		{"plain http", "http://cdninstagram.com/x.mp4", false},
		{"substring host", "https://evilcdninstagram.com/x.mp4", false},
		{"substring fbcdn", "https://notfbcdn.net/x.mp4", false},
		{"suffix then tld", "https://cdninstagram.com.evil.com/x.mp4", false},
		{"arbitrary host", "https://example.com/x.mp4", false},
		{"internal host", "https://169.254.169.254/latest/meta-data", false},
		{"localhost", "https://localhost/x.mp4", false},
		{"userinfo", "https://evil.com@scontent.cdninstagram.com/x.mp4", false},
		{"odd port", "https://scontent.cdninstagram.com:22/x.mp4", false},
		{"relative", "//scontent.cdninstagram.com/x.mp4", false},
		{"garbage", "%%%", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidMediaURL(tt.url); got != tt.want {
				t.Errorf("IsValidMediaURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestHasAllowedMediaHost_SubstringNotSuffix(t *testing.T) {
	for _, domain := range MediaDomains {
		host := "evil" + domain
		if HasAllowedMediaHost(host) {
			t.Errorf("HasAllowedMediaHost(%q) = true, want false", host)
		}
		if !HasAllowedMediaHost("edge." + domain) {
			t.Errorf("HasAllowedMediaHost(%q) = false, want true", "edge."+domain)
		}
	}
}
