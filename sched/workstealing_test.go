package sched

import (
	"testing"
	"time"

	"github.com/kestrelcsp/kestrel/fiber"
)

// stubOwner is a minimal fiber.Owner that doesn't register itself in the
// steal registry, used where a test needs a WorkStealingPolicy's scheduler
// back-reference set without constructing a full Scheduler (which would
// itself register a second policy under the same worker id).
type stubOwner int

func (s stubOwner) Schedule(f *fiber.Fiber)   {}
func (s stubOwner) ID() int                   { return int(s) }
func (s stubOwner) attachWork(f *fiber.Fiber) {}
func (s stubOwner) detachWork(f *fiber.Fiber) {}

func TestWorkStealingPolicyLocalBeforeDeque(t *testing.T) {
	p := NewWorkStealingPolicy(0)
	defer p.Close()
	p.scheduler = stubOwner(0)

	work := fiber.New(1, func(self *fiber.Fiber) {})
	main := fiber.NewSystem(2, fiber.Main, nil)

	p.Enqueue(work)
	p.Enqueue(main)

	// Non-Work kinds ride the local FIFO list and are preferred over the
	// stealable deque.
	if got := p.PickNext(); got != main {
		t.Errorf("expected the local-list fiber first, got %v", got)
	}
	if got := p.PickNext(); got != work {
		t.Errorf("expected the deque fiber second, got %v", got)
	}
}

func TestWorkStealingPolicyIsReady(t *testing.T) {
	p := NewWorkStealingPolicy(10)
	defer p.Close()
	p.scheduler = stubOwner(10)

	if p.IsReady() {
		t.Fatal("a fresh policy should not be ready")
	}
	p.Enqueue(fiber.New(1, func(self *fiber.Fiber) {}))
	if !p.IsReady() {
		t.Fatal("expected IsReady after enqueueing a Work fiber")
	}
}

// TestWorkStealingPolicySteals registers two policies and verifies that a
// fiber pushed onto one deque can be picked up by PickNext on the other via
// steal(), and that the stolen fiber's Owner is reassigned to the thief's
// scheduler (see the "steal() reassigns Owner" correctness note in
// DESIGN.md).
func TestWorkStealingPolicySteals(t *testing.T) {
	victimSched := NewScheduler(100)
	thiefSched := NewScheduler(101)
	defer victimSched.policy.Close()
	defer thiefSched.policy.Close()

	f := fiber.New(1, func(self *fiber.Fiber) {})
	victimSched.policy.Enqueue(f)

	var got *fiber.Fiber
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got = thiefSched.policy.PickNext(); got != nil {
			break
		}
	}
	if got != f {
		t.Fatalf("expected the thief to eventually steal the victim's fiber, got %v", got)
	}
	if f.Owner != thiefSched {
		t.Errorf("expected a stolen fiber's Owner to become the thief's scheduler")
	}
}

func TestWorkStealingPolicyCloseUnregisters(t *testing.T) {
	before := len(snapshotPolicies())
	p := NewWorkStealingPolicy(200)
	if len(snapshotPolicies()) != before+1 {
		t.Fatalf("expected registry to grow by one after construction")
	}
	p.Close()
	if len(snapshotPolicies()) != before {
		t.Errorf("expected registry to shrink back after Close")
	}
}
