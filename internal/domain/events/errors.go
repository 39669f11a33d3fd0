package events

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("event not found")

	// ErrCascadeIncomplete means the event is gone but some of its
	// applications may remain. The pending cascade is journaled and
	// finished by a later reconcile run.
	ErrCascadeIncomplete = errors.New("event deleted but application cascade incomplete")
)

// FieldError reports a malformed value for a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
