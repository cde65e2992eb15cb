package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
)

// ErrInvalid wraps input a user has to correct.
var ErrInvalid = errors.New("invalid input")
