package domain

import (
	"errors"
	"strconv"
)

// ErrorKind classifies failures crossing the proxy and resolver boundaries.
type ErrorKind string

const (
	KindInvalidInput    ErrorKind = "invalid_input"
	KindUpstreamFailure ErrorKind = "upstream_failure"
	KindQuotaExceeded   ErrorKind = "quota_exceeded"
	KindRateLimited     ErrorKind = "rate_limited"
	KindProxyInternal   ErrorKind = "proxy_internal_error"
)

// Domain errors.
var (
	// ErrInvalidInput is returned for malformed or non allow-listed URLs.
	// No network call is made when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamFailure is returned when the origin CDN or resolver API answered with a non-success status.
	ErrUpstreamFailure = errors.New("upstream request failed")

	// ErrQuotaExceeded is returned when the resolver provider's usage cap was hit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")

	// ErrProxyInternal is returned for unexpected local failures while fetching or transforming media.
	ErrProxyInternal = errors.New("proxy internal error")

	// ErrNoMedia is returned when a resolution succeeded but listed no media.
	ErrNoMedia = errors.New("no media found in the response")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidInput:    ErrInvalidInput,
	KindUpstreamFailure: ErrUpstreamFailure,
	KindQuotaExceeded:   ErrQuotaExceeded,
	KindRateLimited:     ErrRateLimited,
	KindProxyInternal:   ErrProxyInternal,
}

// ProxyError is a typed failure with an optional upstream status code.
type ProxyError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *ProxyError) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind, so errors.Is(err, ErrQuotaExceeded) works.
func (e *ProxyError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// NewProxyError creates a new ProxyError.
func NewProxyError(kind ErrorKind, status int, message string) *ProxyError {
	return &ProxyError{
		Kind:    kind,
		Status:  status,
		Message: message,
	}
}

// WrapProxyError creates a ProxyError around an underlying error.
func WrapProxyError(kind ErrorKind, err error) *ProxyError {
	return &ProxyError{
		Kind:    kind,
		Message: err.Error(),
		Err:     err,
	}
}

// KindOf returns the ErrorKind carried by err. Errors that are not ProxyErrors
// are matched against the sentinels and default to KindProxyInternal.
func KindOf(err error) ErrorKind {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindProxyInternal
}

// StatusOf returns the upstream status code carried by err, or 0.
func StatusOf(err error) int {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// User-facing messages.
const (
	MessageQuotaExceeded = "Download service temporarily unavailable. Please try again later."
	MessageRateLimited   = "Too many requests. Please wait a moment and try again."
	MessageInvalidPost   = "Please enter a valid Instagram post, reel, story or IGTV URL."
	MessageGeneric       = "Failed to fetch media"
)

// UserMessage returns the message shown to the user for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindQuotaExceeded:
		return MessageQuotaExceeded
	case KindRateLimited:
		return MessageRateLimited
	case KindInvalidInput:
		return MessageInvalidPost
	}
	if errors.Is(err, ErrNoMedia) {
		return "No media found in the response"
	}
	var pe *ProxyError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return MessageGeneric
}
