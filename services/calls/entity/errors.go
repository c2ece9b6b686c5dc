package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrReceiverUnknown means the receiver identity could not be resolved
	// by the user directory. Fatal to the initiate attempt.
	ErrReceiverUnknown = errors.New("receiver identity cannot be resolved")

	ErrCallNotFound     = errors.New("call session not found")
	ErrScheduleNotFound = errors.New("call schedule not found")

	// ErrCallNotActive rejects transcript appends outside the ACTIVE state.
	ErrCallNotActive = errors.New("call is not active")

	// ErrDeliveryUnavailable means the relay target has no live connection.
	// For real-time signaling this is the expected offline case, not a fault.
	ErrDeliveryUnavailable = errors.New("no live connection for target user")
)

// InvalidTransitionError reports an attempted state change that is not legal
// from the record's current state. The state is left untouched.
type InvalidTransitionError struct {
	ID   string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s", e.ID, e.From, e.To)
}

func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
