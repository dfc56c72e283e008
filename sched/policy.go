package sched

import (
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
)

// Policy is the pluggable scheduling strategy a Scheduler delegates to
// (spec.md §4.3): {enqueue, pick_next, is_ready, suspend_until, notify}.
// WorkStealingPolicy is the default and only implementation kestrel ships,
// but the seam exists so a test or an alternate deployment can swap in a
// simpler FIFO policy without touching Scheduler.
type Policy interface {
	// Enqueue makes f runnable under this policy. Work fibers become
	// stealable; Main/Scheduler fibers go on a local, non-migratable list.
	Enqueue(f *fiber.Fiber)
	// PickNext removes and returns a runnable fiber, stealing from another
	// worker's policy if this one is empty. Returns nil if none is found.
	PickNext() *fiber.Fiber
	// IsReady reports whether PickNext would likely succeed without
	// stealing — a cheap hint, not a guarantee.
	IsReady() bool
	// SuspendUntil parks the calling worker until deadline or a Notify.
	// A zero deadline means "no deadline, park until notified."
	SuspendUntil(deadline time.Time)
	// Notify wakes a worker parked in SuspendUntil.
	Notify()
}
