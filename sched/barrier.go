package sched

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// barrier is the park/notify primitive spec.md §4.3 calls for: a worker with
// no runnable fiber parks on it until a deadline or an explicit wakeup.
//
// Built on golang.org/x/sync/semaphore.Weighted with a single permit,
// pre-acquired so the barrier starts empty. SuspendUntil acquires under a
// deadline context; Notify releases the permit, waking a park in progress
// or leaving the permit available so the *next* park returns immediately —
// a pending wakeup is never lost, which is exactly the race spec.md §5
// ("Locking discipline") warns against.
type barrier struct {
	sem *semaphore.Weighted
}

func newBarrier() *barrier {
	b := &barrier{sem: semaphore.NewWeighted(1)}
	// Drain the sole permit so the barrier starts "empty" (a park blocks
	// until Notify, rather than returning immediately).
	_ = b.sem.Acquire(context.Background(), 1)
	return b
}

// SuspendUntil blocks until Notify is called or deadline passes, whichever
// is first. Returns true if woken by Notify, false if it timed out.
func (b *barrier) SuspendUntil(deadline time.Time) bool {
	ctx := context.Background()
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	err := b.sem.Acquire(ctx, 1)
	return err == nil
}

// Notify wakes a pending SuspendUntil, or arms the barrier so the next one
// returns immediately. Idempotent: calling it twice with no intervening
// park still leaves exactly one permit outstanding, never two.
func (b *barrier) Notify() {
	if b.sem.TryAcquire(1) {
		// A permit was already sitting there from an earlier, un-consumed
		// Notify; put it straight back instead of adding a second one.
		b.sem.Release(1)
		return
	}
	b.sem.Release(1)
}
