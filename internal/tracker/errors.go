package tracker

import "errors"

var (
	ErrInvalidID       = errors.New("invalid task id")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidFormat   = errors.New("invalid output format")
)
