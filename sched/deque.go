package sched

import (
	"sync/atomic"

	"github.com/kestrelcsp/kestrel/fiber"
)

// circularArray is the growable backing store behind a Deque. Indices wrap
// modulo its length, which is always a power of two.
type circularArray struct {
	items []*fiber.Fiber
}

func newCircularArray(capacity int64) *circularArray {
	return &circularArray{items: make([]*fiber.Fiber, capacity)}
}

func (c *circularArray) get(i int64) *fiber.Fiber {
	return c.items[i&(int64(len(c.items))-1)]
}

func (c *circularArray) put(i int64, item *fiber.Fiber) {
	c.items[i&(int64(len(c.items))-1)] = item
}

func (c *circularArray) grow(b, t int64) *circularArray {
	grown := newCircularArray(int64(len(c.items)) * 2)
	for i := t; i < b; i++ {
		grown.put(i, c.get(i))
	}
	return grown
}

// Deque is a Chase-Lev work-stealing deque of migratable (Work) fibers:
// the owner pushes and pops the bottom end in LIFO order, cheaply and
// without contention in the common case; thieves pop the top end in FIFO
// order, racing the owner (and each other) only at the boundary.
//
// Grounded on the design note in spec.md §9 ("Work-stealing deque:
// Chase-Lev or equivalent; owner uses LIFO, thieves FIFO") and the
// CAS-and-backoff discipline in ahrav-go-locks/mcs.go, applied here to the
// classic Chase-Lev algorithm rather than MCS's FIFO lock queue.
type Deque struct {
	top, bottom atomic.Int64
	array       atomic.Pointer[circularArray]
}

// NewDeque returns an empty Deque.
func NewDeque() *Deque {
	d := &Deque{}
	d.array.Store(newCircularArray(32))
	return d
}

// PushBottom is called only by the deque's owner. Never call it
// concurrently with another PushBottom or PopBottom.
func (d *Deque) PushBottom(item *fiber.Fiber) {
	b := d.bottom.Load()
	t := d.top.Load()
	a := d.array.Load()
	if b-t >= int64(len(a.items)) {
		a = a.grow(b, t)
		d.array.Store(a)
	}
	a.put(b, item)
	d.bottom.Store(b + 1)
}

// PopBottom is called only by the deque's owner, LIFO: it returns the most
// recently pushed item, or nil if empty. It may race a concurrent Steal at
// the single-element boundary and lose, also returning nil in that case.
func (d *Deque) PopBottom() *fiber.Fiber {
	b := d.bottom.Load() - 1
	a := d.array.Load()
	d.bottom.Store(b)
	t := d.top.Load()
	if t > b {
		// Deque was already empty; restore bottom.
		d.bottom.Store(t)
		return nil
	}
	item := a.get(b)
	if t == b {
		// Last element: race any concurrent thief for it.
		if !d.top.CompareAndSwap(t, t+1) {
			item = nil
		}
		d.bottom.Store(t + 1)
	}
	return item
}

// Steal is called by any worker other than the owner, FIFO: it returns the
// oldest pushed item still present, or nil if the deque looks empty or the
// steal lost a race to the owner or another thief.
func (d *Deque) Steal() *fiber.Fiber {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return nil
	}
	a := d.array.Load()
	item := a.get(t)
	if !d.top.CompareAndSwap(t, t+1) {
		return nil
	}
	return item
}

// Len is an approximation for logging/metrics only; it races with
// concurrent Steal/PushBottom/PopBottom.
func (d *Deque) Len() int {
	n := d.bottom.Load() - d.top.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
