package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation failed")
)

// TransitionError reports an action that the entity's current state does not allow.
type TransitionError struct {
	Entity string
	ID     int64
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d: cannot %s from %s", e.Entity, e.ID, e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError reports malformed action input. Message names the violated constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
