package tracing

import (
	"sync"

	"github.com/sequence-sim/sequence/sim"
)

// OwnerCountTracer counts how many events each owner has had dispatched.
type OwnerCountTracer struct {
	lock   sync.Mutex
	owners []string
	counts map[string]uint64
}

// NewOwnerCountTracer creates a new OwnerCountTracer.
func NewOwnerCountTracer() *OwnerCountTracer {
	return &OwnerCountTracer{
		counts: make(map[string]uint64),
	}
}

// EventDispatched counts the event under its owner.
func (t *OwnerCountTracer) EventDispatched(evt *sim.Event) {
	name := evt.OwnerName()

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.counts[name]; !ok {
		t.owners = append(t.owners, name)
	}
	t.counts[name]++
}

// Owners returns the owner names in the order they were first seen.
func (t *OwnerCountTracer) Owners() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	owners := make([]string, len(t.owners))
	copy(owners, t.owners)

	return owners
}

// Count returns the number of dispatched events owned by name.
func (t *OwnerCountTracer) Count(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[name]
}
