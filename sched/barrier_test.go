package sched

import (
	"testing"
	"time"
)

func TestBarrierNotifyWakesPendingSuspend(t *testing.T) {
	b := newBarrier()
	woke := make(chan bool, 1)
	go func() {
		woke <- b.SuspendUntil(time.Time{})
	}()

	// Give the goroutine a chance to actually park before notifying.
	time.Sleep(10 * time.Millisecond)
	b.Notify()

	select {
	case ok := <-woke:
		if !ok {
			t.Errorf("expected SuspendUntil to report woken-by-Notify, got timeout")
		}
	case <-time.After(time.Second):
		t.Fatal("SuspendUntil did not return after Notify")
	}
}

func TestBarrierNotifyBeforeSuspendIsNotLost(t *testing.T) {
	b := newBarrier()
	b.Notify() // arrives before anyone is parked

	done := make(chan bool, 1)
	go func() { done <- b.SuspendUntil(time.Time{}) }()

	select {
	case ok := <-done:
		if !ok {
			t.Errorf("expected the pre-armed Notify to wake SuspendUntil immediately")
		}
	case <-time.After(time.Second):
		t.Fatal("a Notify delivered before SuspendUntil was parked must not be lost")
	}
}

func TestBarrierNotifyIdempotentWithoutIntermediateSuspend(t *testing.T) {
	b := newBarrier()
	b.Notify()
	b.Notify() // must not leave two permits outstanding

	first := b.SuspendUntil(time.Time{})
	if !first {
		t.Fatal("expected the first SuspendUntil to consume the armed permit")
	}

	second := make(chan bool, 1)
	go func() { second <- b.SuspendUntil(time.Now().Add(20 * time.Millisecond)) }()
	if ok := <-second; ok {
		t.Errorf("expected the second SuspendUntil to time out, not find a leftover permit")
	}
}

func TestBarrierSuspendUntilTimesOut(t *testing.T) {
	b := newBarrier()
	start := time.Now()
	ok := b.SuspendUntil(start.Add(20 * time.Millisecond))
	if ok {
		t.Errorf("expected SuspendUntil to report a timeout with no Notify")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Errorf("SuspendUntil returned suspiciously early")
	}
}
