package sim

import (
	"log"
	"reflect"
)

// EventLogger is a hook that prints a line for every dispatched event.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*Event)
	if !ok {
		return
	}

	h.Logger.Printf("%d ps, #%d, %s -> %s",
		evt.Time(), evt.Sequence(), runnableName(evt.Runnable()), evt.OwnerName())
}

func runnableName(r Runnable) string {
	if r == nil {
		return "<nil>"
	}

	return reflect.TypeOf(r).String()
}

// RunnableName returns the type name of the runnable of an event.
func RunnableName(evt *Event) string {
	return runnableName(evt.Runnable())
}
