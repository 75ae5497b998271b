package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInsufficientPosition is returned when a sell targets a position
	// that does not exist.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrInvalidInput is returned for malformed operation parameters.
	ErrInvalidInput = errors.New("invalid input")
)
