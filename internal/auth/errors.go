package auth

import "errors"

// Authentication error types.
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingPassword    = errors.New("password is required")
)
