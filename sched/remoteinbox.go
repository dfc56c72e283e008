package sched

import (
	"sync/atomic"

	"github.com/kestrelcsp/kestrel/fiber"
)

// RemoteInbox is the lock-free multi-producer/single-consumer queue a
// scheduler drains at the top of every loop iteration (spec.md §4.2 step
// 1). Any worker may push a fiber it wants to wake onto another worker's
// inbox; only the owning worker ever pops.
//
// Implemented as a Treiber stack threaded through Fiber.RemoteNext — the
// standard lock-free MPSC shape design note §9 calls for ("a standard
// lock-free intrusive stack (Treiber) or multi-list suffices"), grounded on
// the lock-free queue family documented in hayabusa-cloud-lfq's doc.go.
type RemoteInbox struct {
	head atomic.Pointer[fiber.Fiber]
}

// Push adds f to the inbox. Safe from any goroutine.
func (q *RemoteInbox) Push(f *fiber.Fiber) {
	for {
		old := q.head.Load()
		f.RemoteNext.Store(old)
		if q.head.CompareAndSwap(old, f) {
			return
		}
	}
}

// DrainInto pops every fiber currently in the inbox and appends each to
// out in LIFO order (the order they were pushed is not preserved across a
// drain; the scheduler does not need FIFO here, only eventual delivery —
// spec.md's cross-scheduler ordering guarantee is causal, not FIFO). Must
// only be called by the inbox's owning worker.
func (q *RemoteInbox) DrainInto(out []*fiber.Fiber) []*fiber.Fiber {
	head := q.head.Swap(nil)
	for head != nil {
		next := head.RemoteNext.Load()
		head.RemoteNext.Store(nil)
		out = append(out, head)
		head = next
	}
	return out
}

// Empty reports whether the inbox currently looks empty. Racy by nature;
// used only as a hint.
func (q *RemoteInbox) Empty() bool {
	return q.head.Load() == nil
}
