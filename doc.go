/*
Package kestrel implements a user-space CSP concurrency runtime:
lightweight cooperative fibers that synchronize exclusively through
typed, unbuffered rendezvous channels, plus a guarded-choice construct
(Alt) that selects among several send/receive/timeout/skip alternatives
with fairness. Fibers run on a work-stealing M:N scheduler that
multiplexes them across a fixed pool of OS threads.

# Spawning fibers

A [Pool] owns a fixed set of worker threads, each running its own
scheduler loop:

	pool := kestrel.NewPool(kestrel.WithWorkers(4))
	defer pool.Shutdown(context.Background())

	pool.Spawn(func(self *fiber.Fiber) {
		// runs as a Work fiber on one of pool's workers
	})

# Channels

[NewChannel] returns a Tx/Rx pair sharing one unbuffered rendezvous
point:

	tx, rx := kestrel.NewChannel[int]()
	pool.Spawn(func(self *fiber.Fiber) { tx.Send(self, 42) })
	var got int
	rx.Recv(self, &got)

# Guarded choice

Package alt's Case constructors build alternatives consumed by
[alt.New] and run through [*alt.Alt.Select]:

	alt.New(self,
		alt.Recv(rx1, func(v int) { ... }),
		alt.Recv(rx2, func(v int) { ... }),
		alt.Timeout(timer.NewEgg(10*time.Millisecond), func() { ... }),
	).Select()

# Design

Every fiber operation threads an explicit *fiber.Fiber "self" handle
rather than relying on thread-local storage: the portable coroutine
fallback (see internal/coro) can hand a fiber's execution to a goroutine
the Go runtime is free to move across OS threads, so there is no single
thread whose identity could stand in for "the currently running fiber".
See DESIGN.md for the full set of grounding and design decisions.
*/
package kestrel
