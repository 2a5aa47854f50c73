package handler

import "errors"

var (
	ErrInvalidPath            = errors.New("invalid path")
	ErrNotFound               = errors.New("not found")
	ErrUnsupportedContentKind = errors.New("unsupported content kind")
	ErrUnsupportedMethod      = errors.New("unsupported method")
	ErrReadFailure            = errors.New("read failure")
	ErrWriteFailure           = errors.New("write failure")
)

// StatusFor maps a pipeline error onto one of the three wire statuses.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrReadFailure):
		return StatusNotFound
	default:
		return StatusBadRequest
	}
}
