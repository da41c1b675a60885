package quilt

import "errors"

var (
	// ErrQuiltNotFound indicates the quilt doesn't exist.
	ErrQuiltNotFound = errors.New("quilt not found")
	// ErrInvalidInput indicates invalid input for quilt operations.
	ErrInvalidInput = errors.New("invalid quilt input")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid quilt status")
)
