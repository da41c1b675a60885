package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness guard rejects a write,
	// e.g. a second open usage period for the same quilt
	ErrConflict = errors.New("conflict: uniqueness constraint rejected the write")

	// ErrForeignKeyViolation is returned when a foreign key constraint fails
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrInvalidInput is returned when input validation or a CHECK constraint fails
	ErrInvalidInput = errors.New("invalid input")
)
