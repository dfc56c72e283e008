package sched

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/internal/klog"
)

// Pool owns a fixed set of Scheduler workers, each pinned to its own
// locked OS thread, and the shared facilities (next fiber id) that span
// all of them.
//
// Grounded on the fixed-size worker-goroutine-pool pattern in
// blastbao-go-coopsched/coopsched.go, adapted to real OS threads via
// runtime.LockOSThread instead of coopsched's single-goroutine model, and
// to a push-notify shutdown protocol instead of a context-only one so that
// a parked, idle worker wakes promptly on Shutdown.
type Pool struct {
	schedulers []*Scheduler
	wg         sync.WaitGroup
	nextID     atomic.Int64

	affinity bool
}

// Option configures a Pool at construction.
type Option func(*poolConfig)

type poolConfig struct {
	workers  int
	affinity bool
}

// WithWorkers sets the number of worker threads. Defaults to
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *poolConfig) { c.workers = n }
}

// WithCPUAffinity pins each worker to a distinct CPU where the platform
// supports it (Linux only; a no-op elsewhere). See affinity_linux.go.
func WithCPUAffinity() Option {
	return func(c *poolConfig) { c.affinity = true }
}

// NewPool constructs and starts a Pool of workers, each running its
// Scheduler loop on its own locked goroutine.
func NewPool(opts ...Option) *Pool {
	cfg := poolConfig{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	p := &Pool{affinity: cfg.affinity}
	p.schedulers = make([]*Scheduler, cfg.workers)
	for i := range p.schedulers {
		p.schedulers[i] = NewScheduler(i)
	}

	p.wg.Add(cfg.workers)
	for i, s := range p.schedulers {
		i, s := i, s
		go func() {
			defer p.wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			if p.affinity {
				pinToCPU(i)
			}
			main := fiber.NewSystem(int64(-(i + 1)), fiber.Main, nil)
			schedFiber := fiber.NewSystem(int64(-(i + 1000)), fiber.Scheduler, s.run)
			schedFiber.Owner = s
			s.main = main
			s.self = schedFiber
			s.run()
		}()
	}
	return p
}

// Spawn creates a new Work fiber running fn and attaches it to the
// least-loaded worker (approximated by round robin; spec.md does not
// mandate a particular placement policy for fresh spawns, only that
// steal-based rebalancing happen afterward).
func (p *Pool) Spawn(fn func(self *fiber.Fiber)) *fiber.Fiber {
	id := p.nextID.Add(1)
	f := fiber.New(id, fn)
	target := p.schedulers[int(id)%len(p.schedulers)]
	target.Attach(f)
	target.policy.Notify()
	return f
}

// Workers returns the number of worker threads in the pool.
func (p *Pool) Workers() int { return len(p.schedulers) }

// Shutdown asks every worker to stop once it has no queued fiber left and
// owns no running, blocked or sleeping one, and waits for ctx or all
// workers to exit, whichever comes first. Fibers are never forcibly
// terminated: a worker whose fibers do not finish keeps running after
// Shutdown returns ctx's error.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, s := range p.schedulers {
		s.Stop()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		klog.Default.Info("pool shut down", "workers", len(p.schedulers))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pinToCPU is overridden on Linux (affinity_linux.go) to call
// sched_setaffinity; elsewhere it is a no-op since Go exposes no portable
// CPU-pinning syscall.
var pinToCPU = func(cpu int) {}
