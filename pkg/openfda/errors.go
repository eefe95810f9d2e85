package openfda

import (
	"errors"
	"fmt"
)

// Kind classifies a failed openFDA call. Every error returned by this
// package is an [*Error] carrying exactly one Kind; callers branch on it
// via [KindOf] rather than string matching.
type Kind int

const (
	// KindInvalidArgument means the caller-supplied query was rejected
	// before any request was sent (empty drug name, non-positive limit,
	// malformed date range, unknown classification).
	KindInvalidArgument Kind = iota

	// KindNetwork means the request never produced an HTTP response:
	// connection failure, timeout, or an open circuit breaker.
	KindNetwork

	// KindRateLimited means the upstream rejected the call with HTTP 429
	// or an FDA error body indicating an exceeded quota.
	KindRateLimited

	// KindUpstream means the upstream answered with any other non-2xx
	// status.
	KindUpstream

	// KindMalformedResponse means the body was not valid JSON or lacked
	// the expected top-level keys.
	KindMalformedResponse
)

// String returns the stable name of the kind as used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by all openFDA operations.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Endpoint is the short endpoint name ("events", "labels", "recalls")
	// when the failure is tied to a specific call. May be empty for
	// argument validation errors.
	Endpoint string

	// Message is a human-readable description suitable for relaying to
	// the MCP caller.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("openfda %s: %s: %s", e.Endpoint, e.Kind, e.Message)
	}
	return fmt.Sprintf("openfda: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the [Kind] from err. The second return is false when
// err was not produced by this package.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// invalidArgf builds a KindInvalidArgument error.
func invalidArgf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// callErr builds an endpoint-scoped error wrapping cause (which may be nil).
func callErr(kind Kind, endpoint, message string, cause error) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Message: message, Err: cause}
}
