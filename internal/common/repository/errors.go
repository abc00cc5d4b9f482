package repository

import "errors"

// Common repository errors shared across collections
var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a unique constraint is violated
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidTransition is returned when a status change breaks the entity's state machine
	ErrInvalidTransition = errors.New("invalid status transition")
)
