package channel

import (
	"iter"
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
)

// Tx is the sending half of a Channel[T]. Non-copyable by convention
// (callers should hold it behind a single owner, matching spec.md's "each
// handle exclusively owns its side"); Go has no move-only types, so this
// is enforced by discipline rather than the compiler, same as the
// teacher's own handle types.
type Tx[T any] struct {
	core *Core
}

// Rx is the receiving half of a Channel[T].
type Rx[T any] struct {
	core *Core
}

// NewChannel creates a fresh unbuffered rendezvous channel and returns its
// Tx/Rx handle pair, sharing one Core.
func NewChannel[T any]() (*Tx[T], *Rx[T]) {
	c := NewCore()
	return &Tx[T]{core: c}, &Rx[T]{core: c}
}

// Send blocks until a receiver is available or the channel closes.
func (tx *Tx[T]) Send(self *fiber.Fiber, v T) OpResult {
	item := any(v)
	return tx.core.Send(self, &item)
}

// SendUntil is Send with an absolute deadline.
func (tx *Tx[T]) SendUntil(self *fiber.Fiber, v T, deadline time.Time) OpResult {
	item := any(v)
	return tx.core.SendUntil(self, &item, deadline)
}

// SendFor is Send with a deadline relative to now.
func (tx *Tx[T]) SendFor(self *fiber.Fiber, v T, d time.Duration) OpResult {
	return tx.SendUntil(self, v, time.Now().Add(d))
}

// Unwrap exposes the untyped Core underneath tx, for package alt's Case
// constructors which must hold channel ends of heterogeneous element
// types in one slice (see DESIGN.md's note on Core staying non-generic).
func (tx *Tx[T]) Unwrap() *Core { return tx.core }

// Close closes the send direction. Safe to call more than once; only the
// first call has any effect.
func (tx *Tx[T]) Close() { tx.core.Close() }

// IsClosed reports whether the channel has been closed from either side.
func (tx *Tx[T]) IsClosed() bool { return tx.core.IsClosed() }

// Recv blocks until a sender provides a value or the channel closes.
func (rx *Rx[T]) Recv(self *fiber.Fiber, out *T) OpResult {
	var boxed any
	res := rx.core.Recv(self, &boxed)
	if res == Ok {
		*out = boxed.(T)
	}
	return res
}

// RecvUntil is Recv with an absolute deadline.
func (rx *Rx[T]) RecvUntil(self *fiber.Fiber, out *T, deadline time.Time) OpResult {
	var boxed any
	res := rx.core.RecvUntil(self, &boxed, deadline)
	if res == Ok {
		*out = boxed.(T)
	}
	return res
}

// RecvFor is Recv with a deadline relative to now.
func (rx *Rx[T]) RecvFor(self *fiber.Fiber, out *T, d time.Duration) OpResult {
	return rx.RecvUntil(self, out, time.Now().Add(d))
}

// Unwrap exposes the untyped Core underneath rx; see Tx.Unwrap.
func (rx *Rx[T]) Unwrap() *Core { return rx.core }

func (rx *Rx[T]) Close() { rx.core.Close() }

func (rx *Rx[T]) IsClosed() bool { return rx.core.IsClosed() }

// Seq returns a range-over-func iterator (spec.md §6's "forward-only
// receiving iterator", expressed the Go 1.23 way): ranging over it calls
// Recv repeatedly and stops at the first non-Ok result.
func (rx *Rx[T]) Seq(self *fiber.Fiber) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			var v T
			if rx.Recv(self, &v) != Ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Iterator is the classic stateful Next()/Value() shape spec.md §6
// describes literally ("dereferencing yields the most recently received
// item; increment performs the next recv"), for callers not yet on
// range-over-func.
type Iterator[T any] struct {
	rx    *Rx[T]
	self  *fiber.Fiber
	cur   T
	ended bool
}

// Iterator constructs a stateful iterator bound to self. Call Next before
// the first Value.
func (rx *Rx[T]) Iterator(self *fiber.Fiber) *Iterator[T] {
	return &Iterator[T]{rx: rx, self: self}
}

// Next performs the next recv, returning false once the channel closes
// (the iterator's end sentinel, per spec.md §6).
func (it *Iterator[T]) Next() bool {
	if it.ended {
		return false
	}
	var v T
	if it.rx.Recv(it.self, &v) != Ok {
		it.ended = true
		return false
	}
	it.cur = v
	return true
}

// Value returns the most recently received item.
func (it *Iterator[T]) Value() T { return it.cur }
