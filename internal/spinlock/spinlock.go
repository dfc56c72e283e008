// Package spinlock implements the adaptive test-and-set lock spec.md §2
// calls for: short critical sections (a channel's rendezvous slot, a
// fiber's waiter list, an Alt's selection state) protected by a lock that
// spins briefly under contention instead of parking a whole OS thread.
//
// Grounded on the MCS-style CAS-and-backoff loop in
// ahrav-go-locks/mcs.go, simplified from MCS's FIFO queue discipline (spec
// does not require FIFO lock ordering, only mutual exclusion) down to a
// plain test-and-set with exponential backoff, each lock carrying its own
// randx.Rand so that backoff jitter never shares state across locks or
// workers (spec.md §9 design note (b)).
package spinlock

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/kestrelcsp/kestrel/internal/randx"
)

const (
	maxBackoffSpins = 1 << 10
)

// Lock is a spinlock sized for holds measured in tens of instructions:
// moving an item across a channel slot, splicing a fiber into a queue.
// Never hold it across a blocking call.
type Lock struct {
	state atomic.Bool
	rng   randx.Rand
}

// New returns an unlocked Lock seeded from addr, so that two locks at
// different addresses diverge immediately and never share backoff jitter.
func New() *Lock {
	l := &Lock{}
	l.rng = *randx.New(uint64(uintptr(unsafe.Pointer(l))))
	return l
}

// Acquire spins until the lock is held. Backoff starts at one Gosched and
// doubles, capped at maxBackoffSpins, with per-attempt jitter drawn from
// the lock's own PRNG so that contending spinners desynchronize.
func (l *Lock) Acquire() {
	if l.state.CompareAndSwap(false, true) {
		return
	}
	backoff := 1
	for {
		for i := 0; i < backoff; i++ {
			runtime.Gosched()
		}
		if !l.state.Load() && l.state.CompareAndSwap(false, true) {
			return
		}
		if backoff < maxBackoffSpins {
			backoff += 1 + l.rng.Intn(backoff+1)
			if backoff > maxBackoffSpins {
				backoff = maxBackoffSpins
			}
		}
	}
}

// TryAcquire attempts to take the lock without spinning, returning whether
// it succeeded.
func (l *Lock) TryAcquire() bool {
	return l.state.CompareAndSwap(false, true)
}

// Release unlocks. The caller must hold the lock.
func (l *Lock) Release() {
	l.state.Store(false)
}
