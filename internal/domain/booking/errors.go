package booking

import "errors"

// Failure kinds reported by the booking engine. Callers test with errors.Is;
// the wrapped message carries the detail.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrStorage        = errors.New("storage failure")
	ErrForbidden      = errors.New("forbidden")
)
