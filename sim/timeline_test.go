package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type recorder struct {
	timeline *Timeline
	log      []string
}

func (r *recorder) runnable(label string, then ...func()) Runnable {
	return RunnableFunc(func() {
		r.log = append(r.log, label)
		for _, f := range then {
			f()
		}
	})
}

var _ = Describe("Timeline", func() {
	var (
		mockCtrl *gomock.Controller
		timeline *Timeline
		rec      *recorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeline = NewTimeline(Forever)
		rec = &recorder{timeline: timeline}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start at time 0 in the created state", func() {
		Expect(timeline.Now()).To(Equal(VTimeInPs(0)))
		Expect(timeline.StopTime()).To(Equal(Forever))
		Expect(timeline.State()).To(Equal(StateCreated))
		Expect(timeline.IsRunning()).To(BeFalse())
		Expect(timeline.ID()).NotTo(BeEmpty())
	})

	It("should dispatch in time order and break ties by scheduling order", func() {
		timeline.Schedule(NewEvent(5, owner("A"), rec.runnable("A")))
		timeline.Schedule(NewEvent(3, owner("B"), rec.runnable("B")))
		timeline.Schedule(NewEvent(3, owner("C"), rec.runnable("C")))
		timeline.Schedule(NewEvent(10, owner("D"), rec.runnable("D")))

		Expect(timeline.Run()).To(Succeed())

		Expect(rec.log).To(Equal([]string{"B", "C", "A", "D"}))
		Expect(timeline.Now()).To(Equal(VTimeInPs(10)))
		Expect(timeline.State()).To(Equal(StateDrained))
		Expect(timeline.NumDispatched()).To(Equal(uint64(4)))
		Expect(timeline.NumScheduled()).To(Equal(uint64(4)))
		Expect(timeline.NumPending()).To(Equal(0))
	})

	It("should dispatch events scheduled by runnables in the same run", func() {
		r1 := NewMockRunnable(mockCtrl)
		r2 := NewMockRunnable(mockCtrl)
		r3 := NewMockRunnable(mockCtrl)

		gomock.InOrder(
			r1.EXPECT().Execute().Do(func() {
				timeline.Schedule(NewEvent(4, owner("x"), r3))
				timeline.Schedule(NewEvent(2, owner("x"), r2))
			}),
			r2.EXPECT().Execute(),
			r3.EXPECT().Execute(),
		)

		timeline.Schedule(NewEvent(1, owner("x"), r1))

		Expect(timeline.Run()).To(Succeed())
		Expect(timeline.Now()).To(Equal(VTimeInPs(4)))
	})

	It("should not dispatch events at or after the stop time", func() {
		timeline.SetStopTime(5)
		e3 := NewEvent(3, owner("a"), rec.runnable("3"))
		e5 := NewEvent(5, owner("b"), rec.runnable("5"))
		e7 := NewEvent(7, owner("c"), rec.runnable("7"))
		timeline.Schedule(e3)
		timeline.Schedule(e5)
		timeline.Schedule(e7)

		Expect(timeline.Run()).To(Succeed())

		Expect(rec.log).To(Equal([]string{"3"}))
		Expect(timeline.Now()).To(Equal(VTimeInPs(3)))
		Expect(timeline.State()).To(Equal(StateIdle))
		Expect(timeline.NumPending()).To(Equal(2))
		Expect(e5.IsPending()).To(BeTrue())
		Expect(e7.IsPending()).To(BeTrue())
	})

	It("should resume after the stop time is raised", func() {
		timeline.SetStopTime(5)
		e5 := NewEvent(5, owner("b"), rec.runnable("5"))
		e5b := NewEvent(5, owner("b"), rec.runnable("5b"))
		timeline.Schedule(NewEvent(3, owner("a"), rec.runnable("3")))
		timeline.Schedule(e5)
		timeline.Schedule(e5b)
		timeline.Schedule(NewEvent(7, owner("c"), rec.runnable("7")))

		Expect(timeline.Run()).To(Succeed())
		seqBefore := e5.Sequence()

		timeline.SetStopTime(Forever)
		Expect(timeline.Run()).To(Succeed())

		Expect(rec.log).To(Equal([]string{"3", "5", "5b", "7"}))
		Expect(e5.Sequence()).To(Equal(seqBefore))
		Expect(timeline.State()).To(Equal(StateDrained))
	})

	It("should keep an event at Forever pending", func() {
		e := NewEvent(Forever, owner("a"), rec.runnable("never"))
		timeline.Schedule(NewEvent(1, owner("a"), rec.runnable("1")))
		timeline.Schedule(e)

		Expect(timeline.Run()).To(Succeed())

		Expect(rec.log).To(Equal([]string{"1"}))
		Expect(e.IsPending()).To(BeTrue())
		Expect(timeline.NumPending()).To(Equal(1))
		Expect(timeline.State()).To(Equal(StateIdle))
	})

	It("should stop at the current time", func() {
		timeline.Schedule(NewEvent(1, owner("a"), rec.runnable("1", timeline.Stop)))
		timeline.Schedule(NewEvent(1, owner("a"), rec.runnable("1b")))
		timeline.Schedule(NewEvent(2, owner("a"), rec.runnable("2")))

		Expect(timeline.Run()).To(Succeed())

		Expect(rec.log).To(Equal([]string{"1"}))
		Expect(timeline.StopTime()).To(Equal(VTimeInPs(1)))
		Expect(timeline.NumPending()).To(Equal(2))

		timeline.SetStopTime(Forever)
		Expect(timeline.Run()).To(Succeed())
		Expect(rec.log).To(Equal([]string{"1", "1b", "2"}))
	})

	It("should fail on an event in the past and name its owner", func() {
		late := NewEvent(5, owner("late-node"), rec.runnable("late"))
		timeline.Schedule(NewEvent(10, owner("early-node"),
			rec.runnable("10", func() { timeline.Schedule(late) })))

		err := timeline.Run()

		var pastErr *PastEventError
		Expect(errors.As(err, &pastErr)).To(BeTrue())
		Expect(pastErr.Owner).To(Equal("late-node"))
		Expect(pastErr.EventTime).To(Equal(VTimeInPs(5)))
		Expect(pastErr.Now).To(Equal(VTimeInPs(10)))
		Expect(err.Error()).To(ContainSubstring("late-node"))
		Expect(rec.log).To(Equal([]string{"10"}))
		Expect(timeline.State()).To(Equal(StateFailed))
		Expect(timeline.Now()).To(Equal(VTimeInPs(10)))

		err = timeline.Run()
		Expect(err).To(MatchError(ErrTimelineFailed))
		Expect(errors.As(err, &pastErr)).To(BeTrue())
	})

	It("should not dispatch a removed event", func() {
		e := NewEvent(2, owner("a"), rec.runnable("removed"))
		timeline.Schedule(NewEvent(1, owner("a"), rec.runnable("1")))
		timeline.Schedule(e)

		Expect(timeline.RemoveEvent(e)).To(Succeed())
		Expect(timeline.RemoveEvent(e)).To(MatchError(ErrEventNotFound))
		Expect(timeline.Run()).To(Succeed())

		Expect(rec.log).To(Equal([]string{"1"}))
	})

	It("should report not found when removing a dispatched event", func() {
		e := NewEvent(1, owner("a"), rec.runnable("1"))
		timeline.Schedule(e)
		Expect(timeline.Run()).To(Succeed())

		Expect(timeline.RemoveEvent(e)).To(MatchError(ErrEventNotFound))
		Expect(timeline.UpdateEventTime(e, 3)).To(MatchError(ErrEventNotFound))
		Expect(timeline.RemoveEvent(nil)).To(MatchError(ErrEventNotFound))
	})

	It("should update the time of a pending event", func() {
		r := rec.runnable("moved")
		e := NewEvent(1, owner("mover"), r)
		timeline.Schedule(e)
		timeline.Schedule(NewEvent(4, owner("b"), rec.runnable("4")))

		Expect(timeline.UpdateEventTime(e, 4)).To(Succeed())

		Expect(e.Time()).To(Equal(VTimeInPs(4)))
		Expect(e.Owner()).To(Equal(owner("mover")))
		Expect(timeline.NumPending()).To(Equal(2))

		Expect(timeline.Run()).To(Succeed())
		Expect(rec.log).To(Equal([]string{"4", "moved"}))
	})

	It("should reschedule an event that is scheduled twice", func() {
		e := NewEvent(3, owner("a"), rec.runnable("twice"))
		timeline.Schedule(e)
		timeline.Schedule(NewEvent(3, owner("b"), rec.runnable("other")))
		timeline.Schedule(e)

		Expect(timeline.NumPending()).To(Equal(2))
		Expect(timeline.Run()).To(Succeed())
		Expect(rec.log).To(Equal([]string{"other", "twice"}))
	})

	It("should initialize entities in registration order only once", func() {
		e1 := NewMockEntity(mockCtrl)
		e2 := NewMockEntity(mockCtrl)
		r := NewMockRunnable(mockCtrl)

		gomock.InOrder(
			e1.EXPECT().Init().Do(func() {
				timeline.Schedule(NewEvent(1, e1, r))
			}),
			e2.EXPECT().Init(),
		)
		r.EXPECT().Execute()

		timeline.RegisterEntity(e1)
		timeline.RegisterEntity(e2)

		Expect(timeline.Init()).To(Succeed())
		Expect(timeline.State()).To(Equal(StateInitialized))
		Expect(timeline.Init()).To(MatchError(ErrAlreadyInitialized))
		Expect(timeline.Entities()).To(HaveLen(2))

		Expect(timeline.Run()).To(Succeed())
	})

	It("should refuse to run from inside a runnable", func() {
		var nestedErr error
		timeline.Schedule(NewEvent(1, owner("a"), RunnableFunc(func() {
			Expect(timeline.IsRunning()).To(BeTrue())
			Expect(timeline.State()).To(Equal(StateRunning))
			nestedErr = timeline.Run()
		})))

		Expect(timeline.Run()).To(Succeed())
		Expect(nestedErr).To(MatchError(ErrAlreadyRunning))
		Expect(timeline.IsRunning()).To(BeFalse())
	})

	It("should leave the drained state when new work arrives", func() {
		Expect(timeline.Run()).To(Succeed())
		Expect(timeline.State()).To(Equal(StateDrained))

		timeline.Schedule(NewEvent(1, owner("a"), nil))

		Expect(timeline.State()).To(Equal(StateIdle))
	})

	It("should invoke hooks around each event", func() {
		hook := NewMockHook(mockCtrl)
		r := NewMockRunnable(mockCtrl)
		e := NewEvent(1, owner("a"), r)
		timeline.AcceptHook(hook)

		gomock.InOrder(
			hook.EXPECT().Func(HookCtx{Domain: timeline, Pos: HookPosRunStart}),
			hook.EXPECT().Func(HookCtx{
				Domain: timeline, Pos: HookPosBeforeEvent, Item: e,
			}),
			r.EXPECT().Execute(),
			hook.EXPECT().Func(HookCtx{
				Domain: timeline, Pos: HookPosAfterEvent, Item: e,
			}),
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosRunEnd))
			}),
		)

		timeline.Schedule(e)

		Expect(timeline.Run()).To(Succeed())
		Expect(timeline.NumHooks()).To(Equal(1))
	})

	It("should refuse a duplicated hook", func() {
		hook := NewMockHook(mockCtrl)
		timeline.AcceptHook(hook)

		Expect(func() { timeline.AcceptHook(hook) }).To(Panic())
	})
})
