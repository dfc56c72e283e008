package kestrel

import (
	"github.com/kestrelcsp/kestrel/alt"
	"github.com/kestrelcsp/kestrel/channel"
	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/sched"
)

// Pool is a fixed pool of worker threads, each driving one scheduler
// loop. See sched.Pool for the full surface (Shutdown, Workers).
type Pool = sched.Pool

// Option configures a Pool at construction.
type Option = sched.Option

// WithWorkers sets the pool's worker count.
func WithWorkers(n int) Option { return sched.WithWorkers(n) }

// WithCPUAffinity opts into pinning each worker to a distinct CPU where
// the platform supports it.
func WithCPUAffinity() Option { return sched.WithCPUAffinity() }

// NewPool constructs and starts a worker pool.
func NewPool(opts ...Option) *Pool { return sched.NewPool(opts...) }

// NewChannel returns a fresh unbuffered rendezvous channel's Tx/Rx handle
// pair (spec.md §6 "channel factory").
func NewChannel[T any]() (*channel.Tx[T], *channel.Rx[T]) { return channel.NewChannel[T]() }

// Alt is a stack-scoped, single-use guarded-choice selection. Build its
// Cases with the constructors in package alt (Send, Recv, Timeout, Skip,
// and their _If/Each variants) and run it with Select.
type Alt = alt.Alt

// NewAlt builds an Alt owned by self from cases (spec.md §6 "Alt
// builder"); call (*Alt).Select exactly once.
func NewAlt(self *fiber.Fiber, cases ...alt.Case) *Alt { return alt.New(self, cases...) }
