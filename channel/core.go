// Package channel implements the synchronous rendezvous protocol: a
// single-slot channel core shared by a Tx/Rx handle pair, supporting
// plain blocking send/recv and the Alt-mode offer protocol package alt
// drives for guarded choice.
package channel

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/internal/spinlock"
	"github.com/kestrelcsp/kestrel/sched"
)

// OpResult is returned by the blocking channel operations.
type OpResult int

const (
	Ok OpResult = iota
	Closed
	Timeout
)

func (r OpResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Closed:
		return "Closed"
	case Timeout:
		return "Timeout"
	default:
		return "unknown"
	}
}

// AltResult is the internal result of an Alt-mode completion attempt.
type AltResult int

const (
	AltOk AltResult = iota
	AltTryLater
	AltFailed
)

// Offer is how an Alt registers itself as the occupant of a channel's
// send or receive slot, letting Core call back into the owning Alt during
// a peer's completion attempt without this package importing package alt
// (which imports this package for a Choice's channel end).
type Offer interface {
	// Fiber is the offering Alt's owning fiber, rescheduled on a win.
	Fiber() *fiber.Fiber
	// Checking reports whether the Alt's selection state is still
	// Checking (its own scan has not yet finished) — a peer must not
	// attempt TryClaim during this phase and instead reports TryLater.
	Checking() bool
	// TryClaim attempts to move the offering Alt from Waiting to Done,
	// recording this choice as the winner. Returns false if the Alt was
	// already claimed by someone else (another peer, or a timeout).
	TryClaim() bool
}

// pending is whichever fiber or Alt currently occupies one side (send or
// recv) of a Core's rendezvous slot.
type pending struct {
	alt    bool
	fiber  *fiber.Fiber // set when alt is false
	offer  Offer        // set when alt is true
	item   *any         // sender's payload pointer, or receiver's destination pointer
	result OpResult     // written by whoever completes a blocking pending
}

// Core is the untyped rendezvous slot behind a Channel[T]. It is kept
// non-generic (rather than Core[T]) because package alt's Choice must
// hold channel ends of heterogeneous element types side by side within a
// single Alt — Go generics have no way to express a slice of
// differently-instantiated Core[T]s, so the polymorphic Choice talks to
// Core through *any items and Channel[T] supplies the type-safe wrapper
// at the public API boundary (see DESIGN.md).
//
// Grounded on the teacher's chan.go state machine (closed flag, waiter
// slot, completion protocol), generalized from gosim's single-goroutine
// deterministic stepping — where "the only goroutine running" already
// serializes everything — to a real spinlock-guarded slot touched from
// multiple OS threads.
type Core struct {
	lock     spinlock.Lock
	closed   bool
	txSlot   *pending // occupant of the send side, if any
	rxSlot   *pending // occupant of the recv side, if any
	refcount atomic.Int32
}

// NewCore returns a fresh, open Core with a refcount of 2 (one per
// handle of the Tx/Rx pair a channel factory hands out together).
func NewCore() *Core {
	c := &Core{}
	c.refcount.Store(2)
	return c
}

// Release drops one handle's reference; the caller should stop using the
// handle once this returns true (both handles have gone away), though the
// Core itself frees naturally once unreferenced.
func (c *Core) Release() bool {
	return c.refcount.Add(-1) == 0
}

// IsClosed reports whether Close has been called on either handle.
func (c *Core) IsClosed() bool {
	c.lock.Acquire()
	v := c.closed
	c.lock.Release()
	return v
}

// Close marks the channel closed and wakes the waiters (blocking or
// Alt-offering) currently occupying the send slot and the receive slot with
// result Closed. Idempotent: the second and later calls are no-ops
// (spec.md §4.4 "first close wins").
func (c *Core) Close() {
	c.lock.Acquire()
	if c.closed {
		c.lock.Release()
		return
	}
	c.closed = true
	tx, rx := c.txSlot, c.rxSlot
	c.txSlot, c.rxSlot = nil, nil
	c.lock.Release()

	for _, p := range [2]*pending{tx, rx} {
		if p == nil {
			continue
		}
		if p.alt {
			if p.offer.TryClaim() {
				schedulePartner(p.offer.Fiber())
			}
			continue
		}
		p.result = Closed
		schedulePartner(p.fiber)
	}
}

// Send performs a blocking send of *item, suspending self if no receiver
// is immediately available. Retries across Alt-peer TryLater/withdrawal
// exactly as spec.md §4.4 describes ("If the Alt withdrew, retry").
func (c *Core) Send(self *fiber.Fiber, item *any) OpResult {
	return c.sendDeadline(self, item, fiber.NoDeadline)
}

// SendUntil is Send with a deadline; returns Timeout if no receiver
// claims the offer by deadline.
func (c *Core) SendUntil(self *fiber.Fiber, item *any, deadline time.Time) OpResult {
	return c.sendDeadline(self, item, deadline)
}

func (c *Core) sendDeadline(self *fiber.Fiber, item *any, deadline time.Time) OpResult {
	for {
		c.lock.Acquire()
		if c.closed {
			c.lock.Release()
			return Closed
		}
		peer := c.rxSlot
		if peer == nil {
			p := &pending{fiber: self, item: item}
			c.txSlot = p
			if deadline.IsZero() {
				sched.Wait(self, &c.lock)
			} else if sched.WaitUntil(self, deadline, &c.lock) {
				// Possibly expired; reclaim our own offer if it's still
				// unclaimed.
				c.lock.Acquire()
				if c.txSlot == p {
					c.txSlot = nil
					c.lock.Release()
					return Timeout
				}
				c.lock.Release()
			}
			return p.result
		}
		if !peer.alt {
			c.rxSlot = nil
			*peer.item = *item
			peer.result = Ok
			c.lock.Release()
			schedulePartner(peer.fiber)
			return Ok
		}
		if peer.offer.Checking() {
			c.lock.Release()
			runtime.Gosched()
			continue
		}
		if !peer.offer.TryClaim() {
			// Peer resolved elsewhere (timeout, a different channel);
			// this occupancy is stale.
			if c.rxSlot == peer {
				c.rxSlot = nil
			}
			c.lock.Release()
			continue
		}
		c.rxSlot = nil
		*peer.item = *item
		c.lock.Release()
		schedulePartner(peer.offer.Fiber())
		return Ok
	}
}

// Recv is Send's symmetric counterpart: blocks until a sender provides an
// item, writing it into *dest.
func (c *Core) Recv(self *fiber.Fiber, dest *any) OpResult {
	return c.recvDeadline(self, dest, fiber.NoDeadline)
}

// RecvUntil is Recv with a deadline.
func (c *Core) RecvUntil(self *fiber.Fiber, dest *any, deadline time.Time) OpResult {
	return c.recvDeadline(self, dest, deadline)
}

func (c *Core) recvDeadline(self *fiber.Fiber, dest *any, deadline time.Time) OpResult {
	for {
		c.lock.Acquire()
		if c.closed {
			c.lock.Release()
			return Closed
		}
		peer := c.txSlot
		if peer == nil {
			p := &pending{fiber: self, item: dest}
			c.rxSlot = p
			if deadline.IsZero() {
				sched.Wait(self, &c.lock)
			} else if sched.WaitUntil(self, deadline, &c.lock) {
				c.lock.Acquire()
				if c.rxSlot == p {
					c.rxSlot = nil
					c.lock.Release()
					return Timeout
				}
				c.lock.Release()
			}
			return p.result
		}
		if !peer.alt {
			c.txSlot = nil
			*dest = *peer.item
			peer.result = Ok
			c.lock.Release()
			schedulePartner(peer.fiber)
			return Ok
		}
		if peer.offer.Checking() {
			c.lock.Release()
			runtime.Gosched()
			continue
		}
		if !peer.offer.TryClaim() {
			if c.txSlot == peer {
				c.txSlot = nil
			}
			c.lock.Release()
			continue
		}
		c.txSlot = nil
		*dest = *peer.item
		c.lock.Release()
		schedulePartner(peer.offer.Fiber())
		return Ok
	}
}

// AltEnterSend is alt_enter for a Send choice: it tries an immediate
// rendezvous against a blocking receiver or a non-Checking Alt offer; if
// neither is available it installs offer as the send-side occupant and
// returns committed=false so the caller's Alt proceeds to the scan/sleep
// phases.
func (c *Core) AltEnterSend(offer Offer, item *any) (committed bool, result OpResult) {
	c.lock.Acquire()
	if c.closed {
		c.lock.Release()
		return true, Closed
	}
	peer := c.rxSlot
	if peer == nil {
		c.txSlot = &pending{alt: true, offer: offer, item: item}
		c.lock.Release()
		return false, 0
	}
	if !peer.alt {
		c.rxSlot = nil
		*peer.item = *item
		peer.result = Ok
		c.lock.Release()
		schedulePartner(peer.fiber)
		return true, Ok
	}
	if peer.offer.Checking() {
		c.txSlot = &pending{alt: true, offer: offer, item: item}
		c.lock.Release()
		return false, 0
	}
	if peer.offer.TryClaim() {
		c.rxSlot = nil
		*peer.item = *item
		c.lock.Release()
		schedulePartner(peer.offer.Fiber())
		return true, Ok
	}
	c.rxSlot = nil
	c.txSlot = &pending{alt: true, offer: offer, item: item}
	c.lock.Release()
	return false, 0
}

// AltEnterRecv is AltEnterSend's symmetric counterpart.
func (c *Core) AltEnterRecv(offer Offer, dest *any) (committed bool, result OpResult) {
	c.lock.Acquire()
	if c.closed {
		c.lock.Release()
		return true, Closed
	}
	peer := c.txSlot
	if peer == nil {
		c.rxSlot = &pending{alt: true, offer: offer, item: dest}
		c.lock.Release()
		return false, 0
	}
	if !peer.alt {
		c.txSlot = nil
		*dest = *peer.item
		peer.result = Ok
		c.lock.Release()
		schedulePartner(peer.fiber)
		return true, Ok
	}
	if peer.offer.Checking() {
		c.rxSlot = &pending{alt: true, offer: offer, item: dest}
		c.lock.Release()
		return false, 0
	}
	if peer.offer.TryClaim() {
		c.txSlot = nil
		*dest = *peer.item
		c.lock.Release()
		schedulePartner(peer.offer.Fiber())
		return true, Ok
	}
	c.txSlot = nil
	c.rxSlot = &pending{alt: true, offer: offer, item: dest}
	c.lock.Release()
	return false, 0
}

// AltLeaveSend removes offer from the send slot if it is still the
// occupant. Idempotent.
func (c *Core) AltLeaveSend(offer Offer) {
	c.lock.Acquire()
	if c.txSlot != nil && c.txSlot.alt && c.txSlot.offer == offer {
		c.txSlot = nil
	}
	c.lock.Release()
}

// AltLeaveRecv is AltLeaveSend's symmetric counterpart.
func (c *Core) AltLeaveRecv(offer Offer) {
	c.lock.Acquire()
	if c.rxSlot != nil && c.rxSlot.alt && c.rxSlot.offer == offer {
		c.rxSlot = nil
	}
	c.lock.Release()
}

// AltReadySend reports whether a Send choice's quick scan should consider
// this channel ready: the recv side holds a blocking peer, or an Alt
// offer that has moved past Checking (spec.md §4.4 "committed peer").
func (c *Core) AltReadySend() bool {
	c.lock.Acquire()
	ready := c.rxSlot != nil && (!c.rxSlot.alt || !c.rxSlot.offer.Checking()) || c.closed
	c.lock.Release()
	return ready
}

// AltReadyRecv is AltReadySend's symmetric counterpart.
func (c *Core) AltReadyRecv() bool {
	c.lock.Acquire()
	ready := c.txSlot != nil && (!c.txSlot.alt || !c.txSlot.offer.Checking()) || c.closed
	c.lock.Release()
	return ready
}

// AltSend is alt_send: attempt to complete a previously entered send
// offer against whatever currently occupies the recv slot.
func (c *Core) AltSend(item *any) AltResult {
	c.lock.Acquire()
	if c.closed {
		c.lock.Release()
		return AltFailed
	}
	peer := c.rxSlot
	if peer == nil {
		c.lock.Release()
		return AltFailed
	}
	if peer.alt {
		if peer.offer.Checking() {
			c.lock.Release()
			return AltTryLater
		}
		if !peer.offer.TryClaim() {
			c.rxSlot = nil
			c.lock.Release()
			return AltFailed
		}
		c.rxSlot = nil
		*peer.item = *item
		c.lock.Release()
		schedulePartner(peer.offer.Fiber())
		return AltOk
	}
	c.rxSlot = nil
	*peer.item = *item
	peer.result = Ok
	c.lock.Release()
	schedulePartner(peer.fiber)
	return AltOk
}

// AltRecv is AltSend's symmetric counterpart.
func (c *Core) AltRecv(dest *any) AltResult {
	c.lock.Acquire()
	if c.closed {
		c.lock.Release()
		return AltFailed
	}
	peer := c.txSlot
	if peer == nil {
		c.lock.Release()
		return AltFailed
	}
	if peer.alt {
		if peer.offer.Checking() {
			c.lock.Release()
			return AltTryLater
		}
		if !peer.offer.TryClaim() {
			c.txSlot = nil
			c.lock.Release()
			return AltFailed
		}
		c.txSlot = nil
		*dest = *peer.item
		c.lock.Release()
		schedulePartner(peer.offer.Fiber())
		return AltOk
	}
	c.txSlot = nil
	*dest = *peer.item
	peer.result = Ok
	c.lock.Release()
	schedulePartner(peer.fiber)
	return AltOk
}

func schedulePartner(f *fiber.Fiber) {
	f.WakeReason = fiber.WakeNormal
	f.Owner.Schedule(f)
}
