package blogapi

import (
	"errors"
	"fmt"
)

// Typed errors for API operations.
// These allow callers to use errors.Is() for reliable error detection
// instead of fragile string matching.
var (
	// ErrBadRequest indicates the request was malformed or rejected by
	// server-side validation (HTTP 400/422).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates the request failed due to a missing or
	// expired credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the request was rejected due to insufficient
	// permissions (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the target entity changed underneath the request,
	// e.g. a double-delete (HTTP 409/410).
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates a transport-level failure: the server errored
	// (5xx) or could not be reached at all.
	ErrUnavailable = errors.New("service unavailable")
)

// IsAuthError returns true if the error is an authentication/authorization
// error. Convenience for checking whether re-authentication might help.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// wrapStatusError maps an HTTP status code to one of the sentinel errors
// above, preserving the operation name and the server's message for context.
func wrapStatusError(operation string, status int, message string) error {
	var sentinel error
	switch {
	case status == 400 || status == 422:
		sentinel = ErrBadRequest
	case status == 401:
		sentinel = ErrUnauthorized
	case status == 403:
		sentinel = ErrForbidden
	case status == 404:
		sentinel = ErrNotFound
	case status == 409 || status == 410:
		sentinel = ErrConflict
	case status >= 500:
		sentinel = ErrUnavailable
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", operation, status, message)
	}
	if message == "" {
		return fmt.Errorf("%s: %w", operation, sentinel)
	}
	return fmt.Errorf("%s: %w: %s", operation, sentinel, message)
}
