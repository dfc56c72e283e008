package sched

import (
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/internal/dlist"
	"github.com/kestrelcsp/kestrel/internal/klog"
	"github.com/kestrelcsp/kestrel/internal/spinlock"
)

// Scheduler is the loop bound to one OS thread (in practice one locked
// goroutine; see Pool). It owns a Policy for ready/runnable fibers, a sleep
// heap for timed parks, and a RemoteInbox other schedulers push into.
//
// Grounded on the run loop in kmrgirish-gosim/gosimruntime/runtime.go
// (pickGoroutine/runGoroutine), generalized from gosim's single-goroutine
// deterministic stepping to a real loop that parks the OS thread itself
// when idle, per spec.md §4.2.
type Scheduler struct {
	id     int
	policy *WorkStealingPolicy
	sleep  sleepHeap
	inbox  RemoteInbox

	self *fiber.Fiber // the Scheduler-kind fiber running this loop
	main *fiber.Fiber // the Main fiber that called into this worker, if any

	// workListMu guards workList, which Attach/attachWork/detachWork touch
	// from whatever goroutine calls Pool.Spawn as well as from this
	// scheduler's own run loop.
	workListMu spinlock.Lock
	// workList holds every Work fiber this scheduler currently owns
	// outright: attached but not presently sitting detached inside the
	// steal deque. Checked empty before the run loop is allowed to exit, so
	// a fiber still queued, running, blocked or asleep at shutdown-request
	// time is drained rather than dropped (spec.md §4.2 step 6; grounded on
	// libproxc's work_queue_/attach/detach, scheduler.cpp).
	workList dlist.List

	stopping bool
}

// NewScheduler constructs a worker with the given id. Call Run on the
// goroutine that should become this worker's OS thread.
func NewScheduler(id int) *Scheduler {
	s := &Scheduler{
		id:     id,
		policy: NewWorkStealingPolicy(id),
	}
	s.policy.scheduler = s
	return s
}

func (s *Scheduler) ID() int { return s.id }

// Schedule implements fiber.Owner: it makes f runnable, locally if this
// Scheduler already owns f, or via f's owning scheduler's remote inbox
// plus a wakeup otherwise.
func (s *Scheduler) Schedule(f *fiber.Fiber) {
	if f.Owner == s {
		// Defensive: f may still be linked in our sleep-set (it was
		// waiting with a deadline and is now being woken early by a
		// completed rendezvous). Remove is a cheap no-op if it isn't
		// (sleepHeap.Remove bails out on SleepPos < 0).
		s.sleep.Remove(f)
		s.policy.Enqueue(f)
		return
	}
	owner, ok := f.Owner.(*Scheduler)
	if !ok {
		// Owner is some other Owner implementation (e.g. a test stub);
		// best effort, enqueue through its own Schedule.
		f.Owner.Schedule(f)
		return
	}
	owner.inbox.Push(f)
	owner.policy.Notify()
}

// Attach takes ownership of f, giving it to this scheduler's policy for
// the first time (spec.md §4.2 "attach"). f.Owner must already be nil or
// this scheduler.
//
// Mirrors libproxc's Scheduler::commit (attach then schedule,
// scheduler.cpp): attachWork links f into the work-list immediately,
// before policy.Enqueue (which, for a Work fiber, detaches it right back
// off onto the steal deque — see WorkStealingPolicy.Enqueue).
func (s *Scheduler) Attach(f *fiber.Fiber) {
	f.Owner = s
	f.Retain()
	s.attachWork(f)
	s.policy.Enqueue(f)
}

// attachWork links f into this scheduler's work-list: f counts as owned
// outright, not mid-flight in a steal deque. Called at spawn time and
// whenever PickNext obtains f locally or via a steal (spec.md §4.2
// "attach"; grounded on Scheduler::attach, scheduler.cpp).
func (s *Scheduler) attachWork(f *fiber.Fiber) {
	s.workListMu.Acquire()
	s.workList.PushBack(f.WorkElement())
	s.workListMu.Release()
}

// detachWork unlinks f from this scheduler's work-list: f is about to sit
// in a stealable deque, unowned until whichever scheduler's PickNext next
// pops or steals it re-attaches it, or f has just terminated (spec.md
// §4.2 "detach"; grounded on Scheduler::detach and WorkStealing::enqueue,
// work_stealing.cpp, and on Scheduler::terminate_'s work-hook unlink).
func (s *Scheduler) detachWork(f *fiber.Fiber) {
	s.workListMu.Acquire()
	s.workList.Remove(f.WorkElement())
	s.workListMu.Release()
}

// workListEmpty reports whether this scheduler currently owns no Work
// fiber outright — the condition the run loop requires, in addition to
// s.stopping, before it may exit (spec.md §4.2 step 6).
func (s *Scheduler) workListEmpty() bool {
	s.workListMu.Acquire()
	empty := s.workList.Empty()
	s.workListMu.Release()
	return empty
}

// run is the scheduling loop. It runs directly on the worker's native
// goroutine stack (Pool calls it there; this *is* the Main-equivalent
// context for the worker), calling Fiber.Resume to switch into whichever
// fiber policy.PickNext returns.
//
// The exit check runs fresh at the top of every iteration, exactly like
// libproxc's run_() (scheduler.cpp): if stopping is set but the work-list
// isn't empty yet, the loop falls straight through to its normal body
// instead of breaking, so a worker told to stop keeps draining whatever
// it still owns — queued, running, or asleep — until nothing is left
// (spec.md §4.2 step 6: "repeat until exit flag set AND work-list
// empty").
func (s *Scheduler) run() {
	klog.Default.Info("scheduler started", "worker_id", s.id)
	for {
		if s.stopping {
			s.policy.Notify()
			if s.workListEmpty() && !s.policy.IsReady() {
				break
			}
		}
		s.drainRemote()
		s.reapTerminated()
		s.wakeExpired()

		next := s.policy.PickNext()
		if next == nil {
			s.parkUntilReady()
			continue
		}
		s.runFiber(next)
	}
	s.policy.Close()
	klog.Default.Info("scheduler stopped", "worker_id", s.id)
}

// Run starts the loop. It returns when Stop is called and the loop next
// observes it with nothing left to run.
func (s *Scheduler) Run() {
	s.run()
}

// Stop asks the loop to exit after its current iteration. Safe to call
// from any goroutine; wakes the worker if parked.
func (s *Scheduler) Stop() {
	s.stopping = true
	s.policy.Notify()
}

func (s *Scheduler) drainRemote() {
	var buf [32]*fiber.Fiber
	woken := s.inbox.DrainInto(buf[:0])
	for _, f := range woken {
		s.sleep.Remove(f)
		s.policy.Enqueue(f)
	}
}

func (s *Scheduler) reapTerminated() {
	// Work fibers release their refcount on termination inside finishFiber;
	// nothing left to poll here since there is no separate terminated
	// queue to drain in the single-thread-per-worker model (a fiber is
	// reaped the instant its coroutine reports back as finished).
}

func (s *Scheduler) wakeExpired() {
	now := time.Now()
	for _, f := range s.sleep.PopExpired(now) {
		f.Lock.Acquire()
		alt := f.Alt
		f.Alt = nil
		f.Lock.Release()
		if alt != nil {
			if !alt.TryTimeout() {
				// Lost the race to a concurrent commit; the winner already
				// scheduled f.
				continue
			}
		}
		f.WakeReason = fiber.WakeTimeout
		s.Schedule(f)
	}
}

// parkUntilReady suspends the worker's native thread until a sleeper's
// deadline, or a Notify from another worker pushing work our way.
func (s *Scheduler) parkUntilReady() {
	deadline := s.sleep.PeekDeadline()
	s.policy.SuspendUntil(deadline)
}

// runFiber switches into f and handles whatever it reports back on its
// next suspend: done (terminated), yielded (ready again), or parked with a
// deadline (sleeping).
func (s *Scheduler) runFiber(f *fiber.Fiber) {
	result := f.Resume(nil)
	msg, ok := result.(fiber.SuspendMsg)
	if !ok {
		// A bare yield with no structured message: treat as immediately
		// ready again.
		s.policy.Enqueue(f)
		return
	}
	// Resolve the hand-off only now that we've regained control on our own
	// stack: this is what makes the unlock/requeue atomic with respect to
	// the switch (spec.md §9, §5 "Locking discipline").
	if msg.Unlock != nil {
		msg.Unlock.Release()
	}
	if msg.Requeue != nil {
		s.Schedule(msg.Requeue)
	}
	switch msg.Kind {
	case fiber.SuspendYield:
		s.policy.Enqueue(f)
	case fiber.SuspendSleep:
		f.Deadline = msg.Deadline
		s.sleep.Add(f)
	case fiber.SuspendBlocked:
		// f linked itself onto some other fiber's/channel's wait queue
		// before suspending; it will be rescheduled by whoever completes
		// that wait. Nothing to do here.
	case fiber.SuspendTerminated:
		s.finishFiber(f)
	}
}

func (s *Scheduler) finishFiber(f *fiber.Fiber) {
	s.detachWork(f)
	f.Lock.Acquire()
	waiters := f.ReleaseWaiters()
	f.Lock.Release()
	for _, w := range waiters {
		w.WakeReason = fiber.WakeNormal
		s.Schedule(w)
	}
	if f.Release() {
		// refcount reached zero: the reference Attach took is dropped.
		// Nothing further to free explicitly; f becomes garbage once its
		// last pointer (held by whichever queue just dropped it) goes
		// away.
	}
}
