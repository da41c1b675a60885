package usage

import "errors"

var (
	// ErrAlreadyInUse indicates the quilt already has an open usage period.
	// Callers should treat it as an expected outcome (double taps, retries).
	ErrAlreadyInUse = errors.New("quilt is already in use")
	// ErrInvalidInterval indicates a timestamp in the future or before the open period's start.
	ErrInvalidInterval = errors.New("invalid usage interval")
	// ErrStorageUnavailable indicates a transient storage failure; the whole transition may be retried.
	ErrStorageUnavailable = errors.New("usage storage unavailable")
	// ErrInvalidInput indicates invalid input for usage operations.
	ErrInvalidInput = errors.New("invalid usage input")
)
