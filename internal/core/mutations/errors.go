package mutations

import (
	"errors"
	"fmt"

	"Quill/internal/blogapi"
)

// Sentinel errors for the mutation pipeline
var (
	// ErrMutationInFlight is returned when an identical mutation
	// (same operation and target) is already awaiting the API.
	ErrMutationInFlight = errors.New("mutation already in flight")

	// ErrSessionUnavailable is returned when the session store itself
	// failed, so the viewer's sign-in state could not be determined.
	ErrSessionUnavailable = errors.New("session store unavailable")
)

// ValidationError reports a locally detected invalid input, before any
// network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AuthorizationError reports an action attempted by a caller who is not
// signed in, or who is neither the owner nor an admin.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Reason)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// IsValidation checks if the error is a validation failure, whether
// detected locally or rejected by server-side validation.
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr) || errors.Is(err, blogapi.ErrBadRequest)
}

// IsAuthorization checks if the error is an authorization failure,
// locally gated or enforced by the server.
func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr) || blogapi.IsAuthError(err)
}

// IsConflict checks if the error means the target entity no longer exists
// or changed underneath the request (e.g. a double-delete), or that an
// identical mutation is already in flight.
func IsConflict(err error) bool {
	return errors.Is(err, blogapi.ErrConflict) ||
		errors.Is(err, blogapi.ErrNotFound) ||
		errors.Is(err, ErrMutationInFlight)
}

// IsTransport checks if the error is an infrastructure failure (network,
// server-side 5xx, or an unreadable local session store) rather than a
// rejection of the request itself.
func IsTransport(err error) bool {
	return errors.Is(err, blogapi.ErrUnavailable) ||
		errors.Is(err, ErrSessionUnavailable)
}
