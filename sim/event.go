package sim

import "math"

// VTimeInPs defines the time in the simulated space in the unit of
// picosecond.
type VTimeInPs uint64

// Forever is a time that no event can reach. It is the default stop time of a
// Timeline.
const Forever = VTimeInPs(math.MaxUint64)

// A Runnable is the work that is carried out when an event is dispatched.
type Runnable interface {
	// Execute runs to completion before the next event is considered.
	Execute()
}

// RunnableFunc turns a plain function into a Runnable.
type RunnableFunc func()

// Execute calls f.
func (f RunnableFunc) Execute() {
	f()
}

// Named is anything that can be identified by a name.
type Named interface {
	Name() string
}

// An Entity is a simulated object that lives on a Timeline. The Timeline
// calls Init once before the simulation starts, and Init may schedule the
// first events of the entity.
type Entity interface {
	Named
	Init()
}

// An Event is a piece of work that is going to happen in the future.
//
// Events are compared by identity. The Timeline that owns an Event is the
// only one allowed to change its time, through UpdateEventTime.
type Event struct {
	ID string

	time     VTimeInPs
	sequence uint64
	runnable Runnable
	owner    Named

	list  *EventList
	index int
}

// NewEvent creates an event that runs r at time t on behalf of owner.
func NewEvent(t VTimeInPs, owner Named, r Runnable) *Event {
	return &Event{
		ID:       GetIDGenerator().Generate(),
		time:     t,
		runnable: r,
		owner:    owner,
		index:    -1,
	}
}

// Time returns the time that the event is going to happen.
func (e *Event) Time() VTimeInPs {
	return e.time
}

// Sequence returns the tie-break key assigned when the event was scheduled.
func (e *Event) Sequence() uint64 {
	return e.sequence
}

// Runnable returns the work bound to the event.
func (e *Event) Runnable() Runnable {
	return e.runnable
}

// Owner returns the entity that scheduled the event.
func (e *Event) Owner() Named {
	return e.owner
}

// IsPending returns true if the event sits in an event list and has not been
// dispatched or removed.
func (e *Event) IsPending() bool {
	return e.list != nil && e.index >= 0
}

// OwnerName returns the name of the owner, or "<nil>" if there is none.
func (e *Event) OwnerName() string {
	if e.owner == nil {
		return "<nil>"
	}

	return e.owner.Name()
}
