package fiber

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewFiberIsNotTerminated(t *testing.T) {
	f := New(1, func(self *Fiber) {})
	if f.Terminated() {
		t.Error("a freshly created fiber should not be terminated")
	}
	if f.Kind != Work {
		t.Errorf("expected Kind Work, got %v", f.Kind)
	}
}

func TestEntryReturnImplicitlyTerminates(t *testing.T) {
	entered := false
	f := New(2, func(self *Fiber) {
		entered = true
	})
	f.Resume(nil)
	if !entered {
		t.Fatal("entry closure never ran")
	}
	if !f.Terminated() {
		t.Error("expected the fiber to be terminated after its entry closure returned")
	}
}

func TestEntryReceivesOwnHandle(t *testing.T) {
	var seen *Fiber
	f := New(3, func(self *Fiber) {
		seen = self
	})
	f.Resume(nil)
	if seen != f {
		t.Error("expected the entry closure to receive its own fiber as self")
	}
}

func TestSuspendReturnsResumeArg(t *testing.T) {
	f := New(4, func(self *Fiber) {
		got := self.Suspend(nil)
		if got != "resumed" {
			t.Errorf("expected Suspend to return the Resume arg, got %v", got)
		}
	})
	f.Resume(nil)
	f.Resume("resumed")
}

func TestRetainReleaseRefcount(t *testing.T) {
	f := New(5, func(self *Fiber) {})
	f.Retain()
	f.Retain()
	if f.Release() {
		t.Error("expected Release to not yet reach zero after two Retains")
	}
	if !f.Release() {
		t.Error("expected the second Release to reach zero")
	}
}

func TestLinkAndReleaseWaiters(t *testing.T) {
	target := New(6, func(self *Fiber) {})
	w1 := New(7, func(self *Fiber) {})
	w2 := New(8, func(self *Fiber) {})

	target.LinkWaiter(w1)
	target.LinkWaiter(w2)

	released := target.ReleaseWaiters()
	want := []*Fiber{w1, w2}
	if diff := cmp.Diff(want, released, cmp.Comparer(func(a, b *Fiber) bool { return a == b })); diff != "" {
		t.Errorf("released waiters mismatch, want link order [w1 w2] (-want +got):\n%s", diff)
	}
	if more := target.ReleaseWaiters(); len(more) != 0 {
		t.Errorf("expected no waiters left after draining, got %v", more)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{Main: "main", Scheduler: "scheduler", Work: "work"}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

// TestNewSystemPanicsIfEntryReturns exercises Scheduler's "entry returning
// is unreachable" guard. coro.New does not start the entry until the first
// Resume, so an entry that returns immediately (as here) panics out of
// that Resume, and the panic must surface to this test.
func TestNewSystemPanicsIfEntryReturns(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected NewSystem's Scheduler entry returning to panic")
		}
	}()
	f := NewSystem(-1, Scheduler, func() {})
	f.Resume(nil)
}
