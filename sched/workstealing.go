package sched

import (
	"sync"
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/internal/dlist"
	"github.com/kestrelcsp/kestrel/internal/randx"
)

// registry is the process-global table of live WorkStealingPolicy
// instances indexed by worker id, used by PickNext to pick a random victim
// to steal from (spec.md §4.3: "registers itself into a process-global
// table indexed by worker id at construction").
var registry struct {
	mu       sync.RWMutex
	policies []*WorkStealingPolicy
}

func registerPolicy(p *WorkStealingPolicy) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for len(registry.policies) <= p.workerID {
		registry.policies = append(registry.policies, nil)
	}
	registry.policies[p.workerID] = p
}

func unregisterPolicy(p *WorkStealingPolicy) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if p.workerID < len(registry.policies) && registry.policies[p.workerID] == p {
		registry.policies[p.workerID] = nil
	}
}

func snapshotPolicies() []*WorkStealingPolicy {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]*WorkStealingPolicy, 0, len(registry.policies))
	for _, p := range registry.policies {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// workOwner is the subset of *Scheduler a WorkStealingPolicy needs:
// fiber.Owner for reassigning a migrated fiber's Owner, plus the
// work-list hooks that keep attach/detach (spec.md §4.2) in sync with
// deque membership. Unexported methods restrict implementers to this
// package, which is exactly what lets tests use a lightweight stub
// instead of a full *Scheduler.
type workOwner interface {
	fiber.Owner
	attachWork(f *fiber.Fiber)
	detachWork(f *fiber.Fiber)
}

// localElement returns the element that links f into the policy's
// non-migratable local list. Main and Scheduler fibers ride this list
// instead of the Chase-Lev deque.
//
// The policy reuses Fiber's own ready hook for
// this since a fiber is never simultaneously on a policy's local list and
// some other ready queue.
func localElement(f *fiber.Fiber) dlist.Element { return f.ReadyElement() }

// WorkStealingPolicy is the default Policy: each worker owns a Chase–Lev
// deque of migratable (Work) fibers plus a local list for non-migratable
// ones (Main, Scheduler), and parks on a barrier when idle.
//
// Grounded on the design note in spec.md §4.3 and §9, with victim
// selection modeled after the randomized steal loop sketched in
// blastbao-go-coopsched/coopsched.go's scheduling-algorithm seam (here
// fixed to work-stealing rather than pluggable priority).
type WorkStealingPolicy struct {
	workerID  int
	deque     *Deque
	local     dlist.List
	barrier   *barrier
	rng       *randx.Rand
	scheduler workOwner // set by NewScheduler right after construction
}

// NewWorkStealingPolicy creates and registers the policy for workerID.
func NewWorkStealingPolicy(workerID int) *WorkStealingPolicy {
	p := &WorkStealingPolicy{
		workerID: workerID,
		deque:    NewDeque(),
		barrier:  newBarrier(),
		rng:      randx.New(uint64(workerID)*0x9E3779B97F4A7C15 + 1),
	}
	registerPolicy(p)
	return p
}

// Close removes the policy from the steal registry. Call when its worker
// shuts down.
func (p *WorkStealingPolicy) Close() {
	unregisterPolicy(p)
}

// Enqueue places f on the appropriate queue. A Work fiber is detached
// from its owning scheduler's work-list the instant it goes onto the
// steal deque: it is now in-flight and unowned until some scheduler's
// PickNext pops or steals it back off (spec.md §4.2 "detach"; grounded on
// WorkStealing::enqueue, work_stealing.cpp, which calls
// Scheduler::self()->detach(ctx) before the deque push for exactly the
// migratable/Dynamic case). Main/Scheduler-kind fibers never migrate and
// so never touch the work-list at all; they just link onto the local
// list.
func (p *WorkStealingPolicy) Enqueue(f *fiber.Fiber) {
	if f.Kind == fiber.Work {
		p.scheduler.detachWork(f)
		p.deque.PushBottom(f)
		return
	}
	p.local.PushBack(localElement(f))
}

// PickNext re-attaches whatever Work fiber it returns to this policy's
// scheduler before handing it back, mirroring WorkStealing::pick_next's
// attach(ctx) calls after a deque pop or a successful steal
// (work_stealing.cpp).
func (p *WorkStealingPolicy) PickNext() *fiber.Fiber {
	if e := p.local.PopFront(); e != nil {
		return fiber.FromReadyElement(e)
	}
	if f := p.deque.PopBottom(); f != nil {
		p.scheduler.attachWork(f)
		return f
	}
	return p.steal()
}

// steal tries a bounded number of random victims, attaching any stolen
// fiber to this policy's scheduler before returning it (spec.md §4.3:
// "attach any stolen fiber to self's scheduler before returning").
func (p *WorkStealingPolicy) steal() *fiber.Fiber {
	victims := snapshotPolicies()
	if len(victims) <= 1 {
		return nil
	}
	const maxAttempts = 4
	for attempt := 0; attempt < maxAttempts; attempt++ {
		victim := victims[p.rng.Intn(len(victims))]
		if victim == p || victim.workerID == p.workerID {
			continue
		}
		if f := victim.deque.Steal(); f != nil {
			f.Owner = p.scheduler
			p.scheduler.attachWork(f)
			return f
		}
	}
	return nil
}

func (p *WorkStealingPolicy) IsReady() bool {
	return !p.local.Empty() || p.deque.Len() > 0
}

func (p *WorkStealingPolicy) SuspendUntil(deadline time.Time) {
	p.barrier.SuspendUntil(deadline)
}

func (p *WorkStealingPolicy) Notify() {
	p.barrier.Notify()
}
