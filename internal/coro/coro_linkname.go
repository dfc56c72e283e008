//go:build linkname

package coro

import (
	_ "unsafe"
)

type coro struct{}

//go:linkname newcoro runtime.newcoro
func newcoro(func(*coro)) *coro

//go:linkname coroswitch runtime.coroswitch
func coroswitch(*coro)

//go:linkname coroexit runtime.coroexit
func coroexit(*coro)

// Coro is a coroutine: a goroutine-backed execution context with explicit,
// cheap switching. It rides the same runtime primitive that powers
// iter.Pull, reached here through go:linkname since the runtime does not
// export it directly.
type Coro struct {
	coro *coro
}

// Start runs f in a new coroutine, letting it run until its first Yield or
// until Finish. Must be called exactly once.
func (c *Coro) Start(f func()) {
	c.coro = newcoro(func(*coro) {
		f()
		panic("coro: entry returned without calling Finish")
	})
	coroswitch(c.coro)
}

// Next resumes the coroutine from outside, running it until its next Yield
// or Finish.
func (c *Coro) Next() {
	coroswitch(c.coro)
}

// Yield must be called from inside the coroutine; it suspends back to
// whichever call (Start or Next) is waiting for it.
func (c *Coro) Yield() {
	coroswitch(c.coro)
}

// Finish must be called from inside the coroutine; it terminates it.
// Deferred functions on the coroutine's stack do not run.
func (c *Coro) Finish() {
	coroexit(c.coro)
	panic("coro: unreachable after coroexit")
}
