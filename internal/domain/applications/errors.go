package applications

import "errors"

var (
	ErrNotFound       = errors.New("application not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrAlreadyApplied = errors.New("already applied to this event")
	ErrInvalidStatus  = errors.New("status must be one of pending, approved, rejected")
)
