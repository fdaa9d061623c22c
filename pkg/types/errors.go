package types

import "errors"

// Error taxonomy shared by every store operation. Callers classify results
// with errors.Is; the HTTP layer maps each kind to a status code.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
)
