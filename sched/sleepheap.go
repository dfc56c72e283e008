package sched

import (
	"container/heap"
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
)

// sleepHeap is the scheduler's sleep-set: fibers parked with a deadline,
// ordered so the earliest deadline is always at index 0.
//
// Grounded on gosimruntime/timer_heap.go's container/heap.Interface wrapper
// around a []*Timer, generalized from a simulated single field to
// Fiber.Deadline/Fiber.SleepPos.
type sleepHeap struct {
	fibers []*fiber.Fiber
}

func (h *sleepHeap) Len() int { return len(h.fibers) }

func (h *sleepHeap) Less(i, j int) bool {
	return h.fibers[i].Deadline.Before(h.fibers[j].Deadline)
}

func (h *sleepHeap) Swap(i, j int) {
	h.fibers[i], h.fibers[j] = h.fibers[j], h.fibers[i]
	h.fibers[i].SleepPos = i
	h.fibers[j].SleepPos = j
}

func (h *sleepHeap) Push(x any) {
	f := x.(*fiber.Fiber)
	f.SleepPos = len(h.fibers)
	h.fibers = append(h.fibers, f)
}

func (h *sleepHeap) Pop() any {
	n := len(h.fibers)
	f := h.fibers[n-1]
	h.fibers = h.fibers[:n-1]
	f.SleepPos = -1
	return f
}

// Add links f into the sleep-set with its current Fiber.Deadline.
func (h *sleepHeap) Add(f *fiber.Fiber) {
	heap.Push(h, f)
}

// Remove unlinks f from the sleep-set (used when a fiber wakes early, e.g.
// a channel rendezvous completed before its deadline).
func (h *sleepHeap) Remove(f *fiber.Fiber) {
	if f.SleepPos < 0 || f.SleepPos >= len(h.fibers) || h.fibers[f.SleepPos] != f {
		return
	}
	heap.Remove(h, f.SleepPos)
}

// PeekDeadline returns the earliest deadline in the set, or the zero
// time.Time (fiber.NoDeadline) if empty.
func (h *sleepHeap) PeekDeadline() time.Time {
	if len(h.fibers) == 0 {
		return fiber.NoDeadline
	}
	return h.fibers[0].Deadline
}

// PopExpired removes and returns every fiber whose deadline is <= now, in
// deadline order.
func (h *sleepHeap) PopExpired(now time.Time) []*fiber.Fiber {
	var out []*fiber.Fiber
	for len(h.fibers) > 0 && !h.fibers[0].Deadline.After(now) {
		out = append(out, heap.Pop(h).(*fiber.Fiber))
	}
	return out
}

func (h *sleepHeap) Empty() bool { return len(h.fibers) == 0 }
