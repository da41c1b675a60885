package analytics

import "errors"

// ErrInvalidDate indicates a malformed calendar date.
var ErrInvalidDate = errors.New("invalid calendar date")
