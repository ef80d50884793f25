package auth

import "errors"

var (
	// ErrMissingCredentials indicates sign-in/sign-up was attempted
	// without the required credential fields.
	ErrMissingCredentials = errors.New("email and password are required")

	// ErrMissingUsername indicates sign-up was attempted without a username.
	ErrMissingUsername = errors.New("username is required")
)
