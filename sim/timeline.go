package sim

import (
	"fmt"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// TimelineState is the lifecycle state of a Timeline.
type TimelineState int32

// Lifecycle states of a Timeline.
const (
	StateCreated TimelineState = iota
	StateInitialized
	StateRunning
	StateIdle
	StateDrained
	StateFailed
)

func (s TimelineState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateIdle:
		return "Idle"
	case StateDrained:
		return "Drained"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("TimelineState(%d)", int32(s))
	}
}

// A Timeline keeps the discrete event simulation running. It owns the event
// list and the simulated clock, and dispatches events one after another in
// time order.
//
// All the methods except the read-only getters (Now, StopTime, IsRunning,
// State, and the counters) must be called from the goroutine that calls Run,
// or from runnables dispatched by it. The getters are safe to call from any
// goroutine and may return slightly stale values.
type Timeline struct {
	*HookableBase

	id       string
	events   *EventList
	entities []Entity
	rng      *rand.Rand

	now      atomic.Uint64
	stopTime atomic.Uint64
	running  atomic.Bool
	state    atomic.Int32

	numScheduled  atomic.Uint64
	numDispatched atomic.Uint64
	numPending    atomic.Int64

	initialized bool
	failure     error

	showProgress     atomic.Bool
	progressInterval time.Duration
	progressWriter   io.Writer
}

// NewTimeline creates a Timeline that stops dispatching at stopTime. Use
// Forever for a timeline that runs until no event is left.
func NewTimeline(stopTime VTimeInPs) *Timeline {
	return MakeTimelineBuilder().WithStopTime(stopTime).Build()
}

// ID returns the unique ID of the timeline.
func (t *Timeline) ID() string {
	return t.id
}

// Now returns the current simulated time.
func (t *Timeline) Now() VTimeInPs {
	return VTimeInPs(t.now.Load())
}

// StopTime returns the time at or after which no event is dispatched.
func (t *Timeline) StopTime() VTimeInPs {
	return VTimeInPs(t.stopTime.Load())
}

// SetStopTime changes the stop time. Raising the stop time of a stopped
// timeline allows the next Run to continue from where it left off.
func (t *Timeline) SetStopTime(stopTime VTimeInPs) {
	old := t.StopTime()
	t.stopTime.Store(uint64(stopTime))

	if stopTime > old && t.State() == StateDrained {
		t.setState(StateIdle)
	}
}

// IsRunning returns true while Run is dispatching events.
func (t *Timeline) IsRunning() bool {
	return t.running.Load()
}

// State returns the lifecycle state of the timeline.
func (t *Timeline) State() TimelineState {
	return TimelineState(t.state.Load())
}

func (t *Timeline) setState(s TimelineState) {
	t.state.Store(int32(s))
}

// NumScheduled returns how many times Schedule has been called.
func (t *Timeline) NumScheduled() uint64 {
	return t.numScheduled.Load()
}

// NumDispatched returns the number of events whose runnables have run.
func (t *Timeline) NumDispatched() uint64 {
	return t.numDispatched.Load()
}

// NumPending returns the number of events waiting in the event list.
func (t *Timeline) NumPending() int {
	return int(t.numPending.Load())
}

// RegisterEntity adds an entity to the timeline. Entities are initialized in
// the order they are registered.
func (t *Timeline) RegisterEntity(e Entity) {
	t.entities = append(t.entities, e)
}

// Entities returns the registered entities in registration order.
func (t *Timeline) Entities() []Entity {
	return t.entities
}

// Schedule assigns the next sequence number to the event and adds it to the
// event list. Scheduling an event that is still pending reschedules it behind
// all the events that share its time.
// An event at Forever stays pending and is never dispatched, since no stop
// time is later than Forever.
func (t *Timeline) Schedule(evt *Event) {
	evt.sequence = t.numScheduled.Add(1)
	t.events.Push(evt)
	t.syncPending()

	if t.State() == StateDrained {
		t.setState(StateIdle)
	}
}

// Init calls Init on all the registered entities, in registration order. It
// can only be called once.
func (t *Timeline) Init() error {
	if t.initialized {
		return ErrAlreadyInitialized
	}

	t.initialized = true

	for _, e := range t.entities {
		e.Init()
	}

	if t.State() == StateCreated {
		t.setState(StateInitialized)
	}

	return nil
}

// Run dispatches events in time order until the event list is empty or the
// next event is at or after the stop time. Run can be called again after it
// returns, for example after raising the stop time.
//
// Run returns a *PastEventError if an event is found earlier than the
// current time. The timeline cannot run anymore after that.
func (t *Timeline) Run() error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if t.failure != nil {
		t.running.Store(false)
		return fmt.Errorf("%w: %w", ErrTimelineFailed, t.failure)
	}

	t.setState(StateRunning)

	stopProgress := t.startProgressMonitor()
	defer func() {
		t.running.Store(false)
		stopProgress()
	}()

	t.InvokeHook(HookCtx{Domain: t, Pos: HookPosRunStart})

	drained, err := t.dispatchLoop()

	switch {
	case err != nil:
		t.failure = err
		t.setState(StateFailed)
	case drained:
		t.setState(StateDrained)
	default:
		t.setState(StateIdle)
	}

	t.InvokeHook(HookCtx{Domain: t, Pos: HookPosRunEnd, Detail: err})

	return err
}

func (t *Timeline) dispatchLoop() (drained bool, err error) {
	for {
		evt, ok := t.events.PopMin()
		if !ok {
			t.syncPending()
			return true, nil
		}

		if evt.time >= t.StopTime() {
			t.events.Push(evt)
			t.syncPending()
			return false, nil
		}

		t.syncPending()

		now := t.Now()
		if evt.time < now {
			return false, &PastEventError{
				Owner:     evt.OwnerName(),
				EventID:   evt.ID,
				EventTime: evt.time,
				Now:       now,
			}
		}

		t.now.Store(uint64(evt.time))

		t.dispatch(evt)
	}
}

func (t *Timeline) dispatch(evt *Event) {
	hookCtx := HookCtx{
		Domain: t,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	t.InvokeHook(hookCtx)

	if evt.runnable != nil {
		evt.runnable.Execute()
	}

	t.numDispatched.Add(1)

	hookCtx.Pos = HookPosAfterEvent
	t.InvokeHook(hookCtx)
}

// Stop sets the stop time to the current time. Run returns before
// dispatching any event that is not earlier than now, and these events stay
// pending.
func (t *Timeline) Stop() {
	t.stopTime.Store(t.now.Load())
}

// RemoveEvent cancels a pending event. It returns ErrEventNotFound if the
// event has been dispatched or removed.
func (t *Timeline) RemoveEvent(evt *Event) error {
	if err := t.events.Remove(evt); err != nil {
		return t.wrapNotFound("remove", evt, err)
	}

	t.syncPending()

	return nil
}

// UpdateEventTime moves a pending event to a new time. The event gets a new
// sequence number, so it runs after the events that are already scheduled at
// the new time.
func (t *Timeline) UpdateEventTime(evt *Event, newTime VTimeInPs) error {
	if err := t.events.Remove(evt); err != nil {
		return t.wrapNotFound("update", evt, err)
	}

	evt.time = newTime
	t.Schedule(evt)

	return nil
}

func (t *Timeline) wrapNotFound(op string, evt *Event, err error) error {
	if evt == nil {
		return fmt.Errorf("%s nil event: %w", op, err)
	}

	return fmt.Errorf("%s event %s of %s: %w", op, evt.ID, evt.OwnerName(), err)
}

func (t *Timeline) syncPending() {
	t.numPending.Store(int64(t.events.Len()))
}

// Seed resets the random source of the timeline. Entities that draw random
// numbers from Rand get the same numbers every time the same seed is used.
func (t *Timeline) Seed(seed int64) {
	t.rng = rand.New(rand.NewSource(seed))
}

// Rand returns the random source shared by the entities of the timeline.
func (t *Timeline) Rand() *rand.Rand {
	return t.rng
}

// ShowProgress turns the progress monitor on or off. The change takes effect
// the next time Run is called.
func (t *Timeline) ShowProgress(show bool) {
	t.showProgress.Store(show)
}

// TimelineBuilder builds Timelines.
type TimelineBuilder struct {
	stopTime         VTimeInPs
	seed             int64
	showProgress     bool
	progressInterval time.Duration
	progressWriter   io.Writer
}

// MakeTimelineBuilder returns a builder with default settings: no stop time,
// seed 0, and progress reported to stderr every 3 seconds when enabled.
func MakeTimelineBuilder() TimelineBuilder {
	return TimelineBuilder{
		stopTime:         Forever,
		progressInterval: defaultProgressInterval,
		progressWriter:   defaultProgressWriter(),
	}
}

// WithStopTime sets the stop time.
func (b TimelineBuilder) WithStopTime(t VTimeInPs) TimelineBuilder {
	b.stopTime = t
	return b
}

// WithSeed sets the seed of the random source.
func (b TimelineBuilder) WithSeed(seed int64) TimelineBuilder {
	b.seed = seed
	return b
}

// WithProgress enables the progress monitor.
func (b TimelineBuilder) WithProgress() TimelineBuilder {
	b.showProgress = true
	return b
}

// WithProgressInterval sets how often the progress monitor reports.
func (b TimelineBuilder) WithProgressInterval(d time.Duration) TimelineBuilder {
	b.progressInterval = d
	return b
}

// WithProgressWriter sets where the progress monitor writes.
func (b TimelineBuilder) WithProgressWriter(w io.Writer) TimelineBuilder {
	b.progressWriter = w
	return b
}

// Build creates a new Timeline.
func (b TimelineBuilder) Build() *Timeline {
	t := &Timeline{
		HookableBase:     NewHookableBase(),
		id:               xid.New().String(),
		events:           NewEventList(),
		progressInterval: b.progressInterval,
		progressWriter:   b.progressWriter,
	}

	t.stopTime.Store(uint64(b.stopTime))
	t.showProgress.Store(b.showProgress)
	t.Seed(b.seed)

	return t
}
