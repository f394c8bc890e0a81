package adapter

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	// ErrorKindUnauthorized is an authentication or authorization failure.
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	// ErrorKindRateLimited is a provider throttle; RetryAfter may be set.
	ErrorKindRateLimited ErrorKind = "rate_limited"
	// ErrorKindBadRequest is a request the provider rejected as malformed.
	ErrorKindBadRequest ErrorKind = "bad_request"
	// ErrorKindTimeout is a deadline expiry around the network call.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindSchemaViolation is structured output that failed to parse.
	ErrorKindSchemaViolation ErrorKind = "schema_violation"
	// ErrorKindUpstream is a provider-side (5xx) failure.
	ErrorKindUpstream ErrorKind = "upstream"
	// ErrorKindTransport is a network-level failure.
	ErrorKindTransport ErrorKind = "transport"
)

// Error is a classified adapter failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	// RetryAfter is the provider-suggested wait, rate limits only.
	RetryAfter time.Duration
	Err        error
}

// Error returns formatted error message
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified adapter error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// IsKind reports whether err is an adapter error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// KindOf extracts the error kind, or empty when err is not an adapter error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
