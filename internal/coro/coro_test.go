package coro

import "testing"

func TestContextRunsEntryUntilFirstSuspend(t *testing.T) {
	reachedSuspend := false
	var c *Context
	c = New(func(arg any) {
		reachedSuspend = true
		c.Suspend(nil)
	})
	c.Resume(nil)
	if !reachedSuspend {
		t.Fatal("expected the first Resume to run the entry closure up to its first Suspend")
	}
}

func TestContextResumeRoundTripsValues(t *testing.T) {
	var c *Context
	c = New(func(arg any) {
		got := c.Suspend(arg.(int) + 1)
		c.Exit(got.(int) * 10)
	})

	back := c.Resume(41)
	if back.(int) != 42 {
		t.Fatalf("expected Suspend to hand back 42, got %v", back)
	}
	final := c.Resume(5)
	if final.(int) != 50 {
		t.Errorf("expected Exit to hand back 50, got %v", final)
	}
}

func TestContextMultipleSuspendsInSequence(t *testing.T) {
	var c *Context
	steps := 0
	c = New(func(arg any) {
		for i := 0; i < 3; i++ {
			c.Suspend(i)
			steps++
		}
		c.Exit("done")
	})

	for i := 0; i < 3; i++ {
		c.Resume(nil)
	}
	final := c.Resume(nil)
	if final != "done" {
		t.Errorf("expected the final Resume to return \"done\", got %v", final)
	}
	if steps != 3 {
		t.Errorf("expected the entry to resume 3 times between suspends, got %d", steps)
	}
}

func TestContextEntryPanicPropagatesToResume(t *testing.T) {
	var c *Context
	c = New(func(arg any) {
		c.Suspend(nil)
		panic("boom")
	})
	c.Resume(nil) // runs up to the first Suspend, no panic yet

	defer func() {
		if r := recover(); r == nil || r != "boom" {
			t.Errorf("expected the entry's panic to surface from Resume, got %v", r)
		}
	}()
	c.Resume(nil)
}

func TestContextEntryReturningWithoutExitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Resume to panic when the entry closure returns without Suspend/Exit")
		}
	}()
	New(func(arg any) {}).Resume(nil)
}
