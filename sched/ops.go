package sched

import (
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/internal/spinlock"
)

// Yield implements spec.md §4.2 "yield()": re-enqueue self and switch to
// whatever the policy picks next, if anything; a no-op if nothing else is
// runnable (Scheduler.runFiber will just resume self again immediately).
func Yield(self *fiber.Fiber) {
	self.Suspend(fiber.SuspendMsg{Kind: fiber.SuspendYield})
}

// Wait suspends self as blocked, optionally dropping unlock only after the
// scheduler has regained control on the target fiber's stack — the
// lock-hand-off pattern channel and alt rely on to release their slot
// spinlock without a lost-wakeup window (spec.md §9).
func Wait(self *fiber.Fiber, unlock *spinlock.Lock) {
	self.Suspend(fiber.SuspendMsg{Kind: fiber.SuspendBlocked, Unlock: unlock})
}

// WaitUntil is Wait plus a deadline: self is additionally linked into its
// scheduler's sleep-set so it wakes even with no completing peer. Returns
// true if woken by the deadline, false if woken early by a completed
// rendezvous/join/commit.
func WaitUntil(self *fiber.Fiber, deadline time.Time, unlock *spinlock.Lock) bool {
	self.WakeReason = fiber.WakeNormal
	// Clear any stale Alt back-reference from a previous AltWait: this is
	// a plain wait, so a sleep-set timeout firing for it must not be
	// mistaken for this fiber's long-since-resolved Alt (wakeExpired reads
	// Fiber.Alt to decide whether to race a timeout against it).
	self.Lock.Acquire()
	self.Alt = nil
	self.Lock.Release()
	self.Suspend(fiber.SuspendMsg{Kind: fiber.SuspendSleep, Deadline: deadline, Unlock: unlock})
	return self.WakeReason == fiber.WakeTimeout
}

// AltWait is WaitUntil's Alt-aware sibling (spec.md §4.2 "alt_wait"): it
// additionally stores alt on self so a sleep-set timeout can invoke the
// Alt's own compare-and-swap race with a concurrent commit instead of
// unconditionally waking self (Scheduler.wakeExpired checks Fiber.Alt).
// A zero deadline means "no timeout registered"; self is linked as
// SuspendBlocked instead of SuspendSleep in that case.
func AltWait(self *fiber.Fiber, alt fiber.AltWaiter, deadline time.Time, unlock *spinlock.Lock) {
	self.Lock.Acquire()
	self.Alt = alt
	self.Lock.Release()
	if deadline.IsZero() {
		Wait(self, unlock)
	} else {
		self.Suspend(fiber.SuspendMsg{Kind: fiber.SuspendSleep, Deadline: deadline, Unlock: unlock})
	}
	// Clear the back-reference now that we're awake: whichever path woke
	// us (peer commit or timeout) has already recorded the outcome on the
	// Alt itself via winner/state, so Fiber.Alt has no further use until
	// the next AltWait sets it again.
	self.Lock.Acquire()
	self.Alt = nil
	self.Lock.Release()
}

// Join implements spec.md §4.2 "join(f)": block self until target has
// terminated. Returns immediately if target already has.
func Join(self, target *fiber.Fiber) {
	target.Lock.Acquire()
	if target.Terminated() {
		target.Lock.Release()
		return
	}
	target.LinkWaiter(self)
	// Hold target.Lock through the switch: finishFiber (running on
	// target's own scheduler, possibly a different OS thread) must not be
	// able to drain target.Waiters until the scheduler has resolved our
	// suspend and released this same lock on our behalf.
	Wait(self, &target.Lock)
}

// Commit implements spec.md §4.2 "commit(f)": attach + schedule, the
// sequence used when spawning a freshly created Work fiber.
func Commit(owner *Scheduler, f *fiber.Fiber) {
	owner.Attach(f)
}
