package pipeline

import "errors"

var (
	// ErrSkip stops a page without counting it as failed.
	ErrSkip = errors.New("page skipped")

	// ErrTooManyErrors is returned by BatchProcessor when the error
	// threshold is reached.
	ErrTooManyErrors = errors.New("too many errors")
)
