// Package tracing collects information about the events that a timeline
// dispatches.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sequence-sim/sequence/sim"
)

// A Tracer is notified each time an event is dispatched.
type Tracer interface {
	EventDispatched(evt *sim.Event)
}

// CollectTrace lets the tracer collect dispatch traces from a domain. A
// tracer can only be attached to a domain once.
func CollectTrace(domain sim.Hookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook forwards dispatched events to a tracer.
type traceHook struct {
	t Tracer
}

// Func calls the tracer when an event has been dispatched.
func (h *traceHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	evt, ok := ctx.Item.(*sim.Event)
	if !ok {
		return
	}

	h.t.EventDispatched(evt)
}
