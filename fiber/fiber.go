// Package fiber implements the schedulable unit spec.md §4.1 calls Fiber
// (internally "Context" in the spec's data model): a saved execution
// context plus an entry closure, a type tag, intrusive queue membership,
// a wait-queue of fibers blocked on this one, a deadline, and an optional
// back-reference to an active Alt.
//
// Grounded on the goroutine struct in kmrgirish-gosim/gosimruntime/runtime.go
// (ID, parent, finished, coro, waiters, selected fields) generalized from a
// single-threaded deterministic simulation to a real multi-threaded
// scheduler: ownership, migration and the wait-queue are now protected by a
// real per-fiber spinlock instead of relying on only-one-goroutine-runs-
// at-a-time.
package fiber

import (
	"sync/atomic"
	"time"

	"github.com/kestrelcsp/kestrel/internal/coro"
	"github.com/kestrelcsp/kestrel/internal/dlist"
	"github.com/kestrelcsp/kestrel/internal/spinlock"
)

// Kind is a Fiber's type tag.
type Kind int

const (
	// Main wraps the OS thread that called into the scheduler; never
	// migrates.
	Main Kind = iota
	// Scheduler is a worker's long-lived scheduling-loop fiber; never
	// migrates.
	Scheduler
	// Work is a user-spawned fiber; reference-counted, heap-owned,
	// migratable across workers.
	Work
)

func (k Kind) String() string {
	switch k {
	case Main:
		return "main"
	case Scheduler:
		return "scheduler"
	case Work:
		return "work"
	default:
		return "unknown"
	}
}

// NoDeadline is the default deadline: +infinity, meaning "never wakes on
// its own".
var NoDeadline = time.Time{}

// WakeReason distinguishes why a blocked fiber became ready again.
type WakeReason int

const (
	// WakeNormal means whatever the fiber was waiting for happened:
	// rendezvous completed, join target terminated, a plain yield came
	// back around.
	WakeNormal WakeReason = iota
	// WakeTimeout means a registered deadline elapsed first.
	WakeTimeout
)

// Owner is the part of a scheduler a Fiber needs to know about, without
// fiber importing sched (sched imports fiber, not the reverse).
type Owner interface {
	// Schedule makes f runnable again: locally if this Owner owns f,
	// through a remote inbox otherwise.
	Schedule(f *Fiber)
	// ID identifies the owning worker, for logging.
	ID() int
}

// AltWaiter is implemented by alt.Alt. A Fiber suspended inside an Alt's
// sleep phase stores one here so that a sleep-set timeout can notify the
// Alt directly (spec.md §4.2 "alt_wait").
type AltWaiter interface {
	// TryTimeout attempts to claim the Alt's selection for the timeout
	// branch, racing any concurrent commit. Returns true if it won and the
	// owning fiber should be rescheduled.
	TryTimeout() bool
}

// readyHook, workHook, waitHook and terminatedHook give Fiber four
// independent dlist memberships without a single shared Entry colliding
// across lists (spec.md §3 invariant: Ready/Sleep/Wait/Terminated are
// mutually exclusive, but Work is orthogonal and can coexist with any of
// them).
type readyHook struct {
	dlist.Entry
	owner *Fiber
}

type workHook struct {
	dlist.Entry
	owner *Fiber
}

// waitHook is this Fiber's link into some *other* fiber's wait-queue (the
// list of fibers blocked on that other fiber's termination via join).
type waitHook struct {
	dlist.Entry
	owner *Fiber
}

type terminatedHook struct {
	dlist.Entry
	owner *Fiber
}

// Fiber is a cooperatively scheduled unit of execution. Its identity is its
// own address, stable for its lifetime.
type Fiber struct {
	ID   int64
	Kind Kind

	terminated atomic.Bool

	ctx   *coro.Context
	entry func()

	// Owner is the scheduler this fiber currently belongs to. Main and
	// Scheduler fibers never change owner; Work fibers change owner when
	// stolen or explicitly migrated.
	Owner Owner

	// Deadline is read by the sleep-set. NoDeadline means "not sleeping
	// with a timeout".
	Deadline time.Time
	// SleepPos is the sleep-set heap index, maintained by sched's sleep
	// heap the same way timer_heap.go's Timer.pos is.
	SleepPos int

	// Alt is the active Alt this fiber is suspended inside, if any. Set
	// under Lock immediately before suspending in alt.select's sleep
	// phase, cleared immediately after waking.
	Alt AltWaiter

	// Lock protects Waiters, Alt, and this fiber's hook linkage during
	// cross-fiber touches (a peer completing our channel offer, a sleep
	// timeout, a remote schedule).
	Lock spinlock.Lock

	// Waiters is the list of fibers parked in Join(this), woken when this
	// fiber terminates.
	Waiters dlist.List

	// refcount is only meaningful for Kind == Work: incremented when a
	// scheduler attaches it, decremented when it terminates; the fiber is
	// freed when it reaches zero after termination.
	refcount atomic.Int32

	// RemoteNext threads f onto another scheduler's lock-free remote
	// inbox (a Treiber stack); see sched.RemoteInbox.
	RemoteNext atomic.Pointer[Fiber]

	// WakeReason records why a blocked fiber was last made ready again.
	// Set by whoever calls Schedule on it (a timeout, a completed
	// rendezvous, a join target terminating) immediately before
	// scheduling; read by the fiber itself right after its Suspend call
	// returns. This stands in for threading the reason through resume's
	// arg, which would require every caller of Fiber.Resume to know the
	// callee's wake-reason vocabulary.
	WakeReason WakeReason

	readyHook      readyHook
	workHook       workHook
	waitHook       waitHook
	terminatedHook terminatedHook
}

// New creates a Work fiber whose entry closure is fn, given its own
// address as "self" (spec.md's explicit-handle threading: there is no
// thread-local "current fiber" since the portable coroutine fallback can
// hand a fiber's execution to a goroutine the Go runtime is free to
// migrate across OS threads). The fiber is not yet runnable; a scheduler
// must Attach it.
//
// fn ending by return is the normal completion path, exactly like a
// goroutine ending by returning: the wrapper below calls Terminate on
// fn's behalf, and Terminate never gives control back (it exits the
// underlying coroutine). The panic after it is therefore the same
// fatal-unreachable guard proxc::Context::trampoline_ has after
// entry_fn_(vp) in context.cpp — reachable only if Terminate itself
// somehow returned, which would be a bug in the coroutine layer, not in
// fn.
func New(id int64, fn func(self *Fiber)) *Fiber {
	f := &Fiber{ID: id, Kind: Work, Deadline: NoDeadline, SleepPos: -1}
	f.readyHook.owner = f
	f.workHook.owner = f
	f.waitHook.owner = f
	f.terminatedHook.owner = f
	f.ctx = coro.New(func(arg any) {
		fn(f)
		f.Terminate(SuspendMsg{Kind: SuspendTerminated})
		panic("fiber: entry returned without terminating")
	})
	return f
}

// NewSystem wraps an already-running OS thread (kind Main) or a worker's
// scheduling loop (kind Scheduler). These never run through New's
// Terminate-calling wrapper: Main gets no coroutine at all, since it is
// the thread that resumes fibers, and Scheduler's entry gets a coroutine
// whose entry returning panics instead of calling Terminate. fn is nil for Main; for Scheduler it is the scheduling loop.
func NewSystem(id int64, kind Kind, fn func()) *Fiber {
	f := &Fiber{ID: id, Kind: kind, Deadline: NoDeadline, SleepPos: -1}
	f.readyHook.owner = f
	f.workHook.owner = f
	f.waitHook.owner = f
	f.terminatedHook.owner = f
	if fn != nil {
		f.entry = fn
		f.ctx = coro.New(func(arg any) {
			fn()
			panic("fiber: system entry returned")
		})
	}
	return f
}

// Resume switches into f, passing arg, and returns whatever f passes back
// on its next Suspend. f must have a live execution context (Main fibers,
// which represent the calling OS thread itself rather than a coroutine,
// are resumed by the scheduler loop switching *into* them conceptually by
// simply being the stack that called Resume in the first place — see
// sched.Scheduler.run).
func (f *Fiber) Resume(arg any) any {
	return f.ctx.Resume(arg)
}

// Suspend must be called from inside f's own execution context. It hands
// control back to whoever last called Resume.
func (f *Fiber) Suspend(arg any) any {
	return f.ctx.Suspend(arg)
}

// Terminate marks f as finished. Only the running Work fiber calls this on
// itself, immediately before its entry closure returns control for the
// last time via Exit.
func (f *Fiber) Terminate(arg any) {
	f.terminated.Store(true)
	f.ctx.Exit(arg)
}

// Terminated reports whether Terminate has been called.
func (f *Fiber) Terminated() bool { return f.terminated.Load() }

// Retain increments the Work-fiber refcount. No-op for Main/Scheduler
// fibers, which are statically owned.
func (f *Fiber) Retain() {
	if f.Kind == Work {
		f.refcount.Add(1)
	}
}

// Release decrements the Work-fiber refcount, returning true if it reached
// zero (the caller should free the fiber). No-op, always false, for
// Main/Scheduler fibers.
func (f *Fiber) Release() bool {
	if f.Kind != Work {
		return false
	}
	return f.refcount.Add(-1) == 0
}

// LinkWaiter enqueues other onto f.Waiters: other is waiting for f to
// terminate. Caller holds f.Lock.
func (f *Fiber) LinkWaiter(other *Fiber) {
	f.Waiters.PushBack(&other.waitHook)
}

// ReleaseWaiters drains f.Waiters, returning the fibers that were waiting
// so the caller can schedule them. Caller holds f.Lock.
func (f *Fiber) ReleaseWaiters() []*Fiber {
	var out []*Fiber
	for {
		e := f.Waiters.PopFront()
		if e == nil {
			break
		}
		out = append(out, e.(*waitHook).owner)
	}
	return out
}

// SuspendKind tags why a fiber suspended, telling its scheduler which
// queue to place it on next once it regains control (spec.md §4.2 "wait /
// wait_until / alt_wait": resume-data may carry a fiber to re-enqueue and
// a lock to drop, both resolved only after the scheduler regains control
// in the target fiber).
type SuspendKind int

const (
	// SuspendYield means "ready again immediately" (plain yield()).
	SuspendYield SuspendKind = iota
	// SuspendSleep means "park until Deadline" (wait_until).
	SuspendSleep
	// SuspendBlocked means the fiber already linked itself onto some
	// other queue (a channel's waiter slot, another fiber's Waiters) and
	// will be rescheduled by whoever completes that wait.
	SuspendBlocked
	// SuspendTerminated means the fiber called Terminate.
	SuspendTerminated
)

// SuspendMsg is what a fiber passes to Context.Suspend/Exit and what its
// scheduler reads back from Resume's return value. Unlock and Requeue
// implement the "hand a lock and a fiber to the scheduler, resolved after
// the switch completes" pattern spec.md §9 describes: both are applied
// only once the scheduler has regained control on its own stack, which is
// what makes the release atomic with respect to the context switch and
// closes the lost-wakeup window a naive unlock-then-suspend would open.
type SuspendMsg struct {
	Kind     SuspendKind
	Deadline time.Time
	Unlock   *spinlock.Lock
	Requeue  *Fiber
}

// ReadyElement, WorkElement and TerminatedElement expose the hook structs
// as dlist.Elements for sched's queues, which are built generically over
// dlist.Element and must not need to know about Fiber's internals.
func (f *Fiber) ReadyElement() dlist.Element      { return &f.readyHook }
func (f *Fiber) WorkElement() dlist.Element       { return &f.workHook }
func (f *Fiber) TerminatedElement() dlist.Element { return &f.terminatedHook }

// FromReadyElement, FromWorkElement and FromTerminatedElement recover the
// owning Fiber from an Element popped off one of sched's queues.
func FromReadyElement(e dlist.Element) *Fiber      { return e.(*readyHook).owner }
func FromWorkElement(e dlist.Element) *Fiber       { return e.(*workHook).owner }
func FromTerminatedElement(e dlist.Element) *Fiber { return e.(*terminatedHook).owner }
