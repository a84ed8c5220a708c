package sim

import (
	"container/heap"
)

// EventList is a queue of events ordered by time. Events with the same time
// are ordered by their sequence numbers, so the event scheduled first runs
// first.
//
// An EventList is not thread safe. It is owned by a Timeline and only touched
// by the goroutine that drives the Timeline.
type EventList struct {
	events eventHeap
}

// NewEventList creates and returns a newly created EventList.
func NewEventList() *EventList {
	l := new(EventList)
	l.events = make([]*Event, 0)
	heap.Init(&l.events)
	return l
}

// Push adds an event to the list. Pushing an event that is already pending in
// this list moves it to the position that matches its current key. An event
// can only be pending in one list at a time.
func (l *EventList) Push(evt *Event) {
	if evt.list != nil && evt.list != l {
		panic("event " + evt.ID + " is pending in another event list")
	}

	if evt.list == l && evt.index >= 0 {
		heap.Fix(&l.events, evt.index)
		return
	}

	evt.list = l
	heap.Push(&l.events, evt)
}

// PopMin removes and returns the earliest event. It returns false if the list
// is empty.
func (l *EventList) PopMin() (*Event, bool) {
	if len(l.events) == 0 {
		return nil, false
	}

	evt := heap.Pop(&l.events).(*Event)
	evt.list = nil

	return evt, true
}

// Peek returns the earliest event without removing it.
func (l *EventList) Peek() (*Event, bool) {
	if len(l.events) == 0 {
		return nil, false
	}

	return l.events[0], true
}

// Remove takes a pending event out of the list, wherever it is. It returns
// ErrEventNotFound if the event has been dispatched, removed, or never pushed
// into this list.
func (l *EventList) Remove(evt *Event) error {
	if evt == nil || evt.list != l || evt.index < 0 {
		return ErrEventNotFound
	}

	heap.Remove(&l.events, evt.index)
	evt.list = nil

	return nil
}

// Len returns the number of events in the list.
func (l *EventList) Len() int {
	return len(l.events)
}

// IsEmpty returns true if no event is pending.
func (l *EventList) IsEmpty() bool {
	return len(l.events) == 0
}

type eventHeap []*Event

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h)
}

// Less determines the order between two events. Less returns true if the i-th
// event happens before the j-th event.
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}

	return h[i].sequence < h[j].sequence
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x any) {
	evt := x.(*Event)
	evt.index = len(*h)
	*h = append(*h, evt)
}

// Pop removes and returns the last event of the backing slice
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	evt.index = -1
	*h = old[0 : n-1]
	return evt
}
