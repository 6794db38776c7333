package loan

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("loan not found")
	ErrInvalidTransition      = errors.New("invalid loan status transition")
	ErrConcurrentModification = errors.New("loan was modified concurrently")
	ErrInvalidInput           = errors.New("invalid loan input")
	ErrExceedsPlafond         = errors.New("amount exceeds available plafond")
)

// TransitionError carries the rejected action and the status it was attempted from.
type TransitionError struct {
	Action Action
	Status Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a loan in status %s", e.Action, e.Status)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
