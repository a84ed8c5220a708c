package tracing

import (
	"github.com/sequence-sim/sequence/datarecording"
	"github.com/sequence-sim/sequence/sim"
)

// DispatchTableName is the table that a DispatchTracer writes into.
const DispatchTableName = "dispatch"

// DispatchEntry is one row of the dispatch table.
type DispatchEntry struct {
	Time     uint64
	Sequence uint64
	EventID  string
	Owner    string
	Runnable string
}

// DispatchTracer stores every dispatched event into a DataRecorder.
type DispatchTracer struct {
	backend datarecording.DataRecorder

	startTime, endTime sim.VTimeInPs
	count              uint64
}

// NewDispatchTracer creates a DispatchTracer and the table it writes to.
func NewDispatchTracer(backend datarecording.DataRecorder) *DispatchTracer {
	backend.CreateTable(DispatchTableName, DispatchEntry{})

	return &DispatchTracer{
		backend: backend,
		endTime: sim.Forever,
	}
}

// WithWindow limits the tracer to events in [start, end).
func (t *DispatchTracer) WithWindow(start, end sim.VTimeInPs) *DispatchTracer {
	t.startTime = start
	t.endTime = end

	return t
}

// NumRecorded returns the number of rows written so far.
func (t *DispatchTracer) NumRecorded() uint64 {
	return t.count
}

// EventDispatched records the event.
func (t *DispatchTracer) EventDispatched(evt *sim.Event) {
	if evt.Time() < t.startTime || evt.Time() >= t.endTime {
		return
	}

	t.backend.InsertData(DispatchTableName, DispatchEntry{
		Time:     uint64(evt.Time()),
		Sequence: evt.Sequence(),
		EventID:  evt.ID,
		Owner:    evt.OwnerName(),
		Runnable: sim.RunnableName(evt),
	})

	t.count++
}
