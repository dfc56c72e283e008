// Package alt implements the guarded-choice construct spec.md §4.5 calls
// Alt: a builder of Send/Recv/Timeout/Skip alternatives plus a four-phase
// selection engine (enter, quick scan and commit, sleep, leave and
// commit).
//
// Go forbids generic methods (a method cannot introduce its own type
// parameters), so the spec's "chainable builder" becomes a set of
// package-level generic constructors that each produce an opaque, already
// type-erased Case, plus a non-generic *Alt built from a slice of them —
// see DESIGN.md's note on this adaptation.
package alt

import (
	"github.com/kestrelcsp/kestrel/channel"
	"github.com/kestrelcsp/kestrel/timer"
)

type kind int

const (
	kindSend kind = iota
	kindRecv
	kindTimeout
	kindSkip
)

// Case is one alternative within an Alt, polymorphic over {Send, Recv,
// Timeout, Skip} (spec.md §3 "Choice"). Built only by the constructors
// below; its fields are accessed by package alt's select engine.
type Case struct {
	kind  kind
	core  *channel.Core
	item  *any
	guard func() bool

	onSend func()
	onRecv func(any)

	tm        timer.Timer
	onTimeout func()

	onSkip func()
}

// Send builds a Choice that offers item on tx, running fn after it is
// sent.
func Send[T any](tx *channel.Tx[T], item T, fn func()) Case {
	v := any(item)
	return Case{kind: kindSend, core: tx.Unwrap(), item: &v, onSend: fn}
}

// SendIf is Send guarded by guard: the choice is excluded from selection
// entirely (as if absent) whenever guard() is false at Enter time.
func SendIf[T any](guard func() bool, tx *channel.Tx[T], item T, fn func()) Case {
	v := any(item)
	return Case{kind: kindSend, core: tx.Unwrap(), item: &v, guard: guard, onSend: fn}
}

// Recv builds a Choice that receives from rx, running fn with the
// received value.
func Recv[T any](rx *channel.Rx[T], fn func(T)) Case {
	var box any
	return Case{kind: kindRecv, core: rx.Unwrap(), item: &box, onRecv: func(v any) { fn(v.(T)) }}
}

// RecvIf is Recv guarded by guard.
func RecvIf[T any](guard func() bool, rx *channel.Rx[T], fn func(T)) Case {
	var box any
	return Case{kind: kindRecv, core: rx.Unwrap(), item: &box, guard: guard, onRecv: func(v any) { fn(v.(T)) }}
}

// SendEach builds one Send Choice per (tx, item) pair — the "replicated
// variant" spec.md §6 lists for iterating a collection of channels.
func SendEach[T any](txs []*channel.Tx[T], items []T, fn func(i int)) []Case {
	cases := make([]Case, len(txs))
	for i := range txs {
		i := i
		cases[i] = Send(txs[i], items[i], func() { fn(i) })
	}
	return cases
}

// RecvEach builds one Recv Choice per rx — the replicated receive
// variant.
func RecvEach[T any](rxs []*channel.Rx[T], fn func(i int, v T)) []Case {
	cases := make([]Case, len(rxs))
	for i := range rxs {
		i := i
		cases[i] = Recv(rxs[i], func(v T) { fn(i, v) })
	}
	return cases
}

// Timeout builds a Choice that fires fn if no other choice completes by
// t's deadline.
func Timeout(t timer.Timer, fn func()) Case {
	return Case{kind: kindTimeout, tm: t, onTimeout: fn}
}

// TimeoutIf is Timeout guarded by guard.
func TimeoutIf(guard func() bool, t timer.Timer, fn func()) Case {
	return Case{kind: kindTimeout, tm: t, guard: guard, onTimeout: fn}
}

// Skip builds a Choice that fires fn immediately if, at Enter time, no
// other choice can possibly be ready (spec.md §4.5 "has_skip allows
// select_0 to return Skip immediately").
func Skip(fn func()) Case {
	return Case{kind: kindSkip, onSkip: fn}
}

// SkipIf is Skip guarded by guard.
func SkipIf(guard func() bool, fn func()) Case {
	return Case{kind: kindSkip, guard: guard, onSkip: fn}
}
