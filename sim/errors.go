package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrEventNotFound is returned when an event that is not pending is
	// removed or rescheduled.
	ErrEventNotFound = errors.New("event is not pending")

	// ErrAlreadyInitialized is returned when Init is called more than once.
	ErrAlreadyInitialized = errors.New("timeline already initialized")

	// ErrAlreadyRunning is returned when Run is called while the timeline is
	// dispatching events.
	ErrAlreadyRunning = errors.New("timeline is already running")

	// ErrTimelineFailed is returned by Run after a fatal invariant violation.
	ErrTimelineFailed = errors.New("timeline has failed")
)

// PastEventError reports an event that was dispatched with a time earlier
// than the current time. The owner of the event scheduled it into the past.
type PastEventError struct {
	Owner     string
	EventID   string
	EventTime VTimeInPs
	Now       VTimeInPs
}

func (e *PastEventError) Error() string {
	return fmt.Sprintf(
		"invalid event time for process scheduled on %s: "+
			"event %s @ %d ps, now %d ps",
		e.Owner, e.EventID, e.EventTime, e.Now,
	)
}
