package timer

import (
	"testing"
	"time"
)

func TestEggExpiresAfterDuration(t *testing.T) {
	e := NewEgg(20 * time.Millisecond)
	if e.Expired() {
		t.Fatal("a fresh Egg should not be expired immediately")
	}
	time.Sleep(30 * time.Millisecond)
	if !e.Expired() {
		t.Error("expected Egg to be expired after its duration elapsed")
	}
}

func TestEggResetIsNoop(t *testing.T) {
	e := NewEgg(10 * time.Millisecond)
	when := e.Get()
	e.Reset()
	if !e.Get().Equal(when) {
		t.Error("Reset on an Egg must not change its deadline")
	}
}

func TestRepeatRearmsOnReset(t *testing.T) {
	r := NewRepeat(20 * time.Millisecond)
	first := r.Get()
	time.Sleep(25 * time.Millisecond)
	if !r.Expired() {
		t.Fatal("expected Repeat expired after its period")
	}
	r.Reset()
	if !r.Get().After(first) {
		t.Error("expected Reset to push the deadline forward")
	}
	if r.Expired() {
		t.Error("expected Repeat not expired immediately after Reset")
	}
}

func TestDateNeverRearms(t *testing.T) {
	past := time.Now().Add(-time.Second)
	d := NewDate(past)
	if !d.Expired() {
		t.Fatal("a Date in the past should already be expired")
	}
	d.Reset()
	if !d.Expired() {
		t.Error("Reset on a Date must stay a no-op")
	}
	if !d.Get().Equal(past) {
		t.Error("Reset must not move a Date's deadline")
	}
}
