package sched

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kestrelcsp/kestrel/fiber"
)

func TestRemoteInboxDrainReturnsEverythingPushed(t *testing.T) {
	var q RemoteInbox
	if !q.Empty() {
		t.Fatal("fresh inbox should be empty")
	}

	a, b, c := newDequeFiber(1), newDequeFiber(2), newDequeFiber(3)
	q.Push(a)
	q.Push(b)
	q.Push(c)

	if q.Empty() {
		t.Fatal("inbox should not look empty after pushing")
	}

	got := q.DrainInto(nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 fibers drained, got %d", len(got))
	}
	seen := map[*fiber.Fiber]bool{}
	for _, f := range got {
		seen[f] = true
	}
	for _, f := range []*fiber.Fiber{a, b, c} {
		if !seen[f] {
			t.Errorf("expected %v among drained fibers", f.ID)
		}
	}

	if !q.Empty() {
		t.Fatal("inbox should be empty after a full drain")
	}
	if got := q.DrainInto(nil); got != nil {
		t.Errorf("expected nil draining an already-empty inbox, got %v", got)
	}
}

// TestRemoteInboxConcurrentPushers exercises the MPSC shape directly: many
// goroutines push concurrently while a single goroutine repeatedly drains,
// and every pushed fiber must be observed exactly once across all drains.
func TestRemoteInboxConcurrentPushers(t *testing.T) {
	var q RemoteInbox
	const producers = 16
	const perProducer = 500
	const total = producers * perProducer

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(newDequeFiber(int64(p*perProducer + i)))
			}
		}()
	}

	var drained atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for drained.Load() < total {
			drained.Add(int64(len(q.DrainInto(nil))))
		}
	}()

	wg.Wait()
	<-done

	if got := drained.Load(); got != total {
		t.Errorf("expected %d fibers drained in total, got %d", total, got)
	}
}
