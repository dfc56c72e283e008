package kestrel_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelcsp/kestrel"
	"github.com/kestrelcsp/kestrel/alt"
	"github.com/kestrelcsp/kestrel/fiber"
)

func startPool(t *testing.T, workers int) *kestrel.Pool {
	t.Helper()
	p := kestrel.NewPool(kestrel.WithWorkers(workers))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("pool shutdown: %v", err)
		}
	})
	return p
}

// TestPingPong bounces a counter back and forth between two fibers over a
// pair of channels, with an errgroup fanning out the two result-collecting
// drivers and surfacing whichever side panics or stalls first — grounded
// on nemesis_test.go's errgroup-per-fiber-driver fan-out.
func TestPingPong(t *testing.T) {
	p := startPool(t, 2)
	ping, pongSide := kestrel.NewChannel[int]()
	pongReply, pingSide := kestrel.NewChannel[int]()

	const rounds = 50
	pingDone := make(chan error, 1)
	pongDone := make(chan error, 1)

	p.Spawn(func(self *fiber.Fiber) {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("ping: %v", r)
			}
			pingDone <- err
		}()
		for i := 0; i < rounds; i++ {
			ping.Send(self, i)
			var v int
			pingSide.Recv(self, &v)
			if v != i+1 {
				panic(fmt.Sprintf("expected reply %d, got %d", i+1, v))
			}
		}
	})
	p.Spawn(func(self *fiber.Fiber) {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pong: %v", r)
			}
			pongDone <- err
		}()
		for i := 0; i < rounds; i++ {
			var v int
			pongSide.Recv(self, &v)
			pongReply.Send(self, v+1)
		}
	})

	var g errgroup.Group
	g.Go(func() error { return waitOrTimeout(pingDone, 2*time.Second, "ping") })
	g.Go(func() error { return waitOrTimeout(pongDone, 2*time.Second, "pong") })
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func waitOrTimeout(done <-chan error, d time.Duration, who string) error {
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return fmt.Errorf("%s side never completed", who)
	}
}

// TestPipelineFanIn wires a generate -> fan-in -> square -> sum pipeline
// across five fibers, with errgroup fanning out the final-sum check
// alongside a watchdog that fails fast if the pipeline wedges.
func TestPipelineFanIn(t *testing.T) {
	p := startPool(t, 4)

	srcA, rxA := kestrel.NewChannel[int]()
	srcB, rxB := kestrel.NewChannel[int]()
	mergedTx, mergedRx := kestrel.NewChannel[int]()
	squaredTx, squaredRx := kestrel.NewChannel[int]()

	const n = 25
	p.Spawn(func(self *fiber.Fiber) {
		for i := 0; i < n; i++ {
			srcA.Send(self, i)
		}
	})
	p.Spawn(func(self *fiber.Fiber) {
		for i := 0; i < n; i++ {
			srcB.Send(self, i)
		}
	})

	// Fan-in: exactly 2n sends are outstanding across rxA/rxB, so 2n
	// Alt-recvs drain both generators without ever touching a closed
	// channel inside Alt.
	p.Spawn(func(self *fiber.Fiber) {
		for i := 0; i < 2*n; i++ {
			var v int
			alt.New(self,
				alt.Recv(rxA, func(x int) { v = x }),
				alt.Recv(rxB, func(x int) { v = x }),
			).Select()
			mergedTx.Send(self, v)
		}
	})

	p.Spawn(func(self *fiber.Fiber) {
		for i := 0; i < 2*n; i++ {
			var v int
			mergedRx.Recv(self, &v)
			squaredTx.Send(self, v*v)
		}
	})

	result := make(chan int, 1)
	p.Spawn(func(self *fiber.Fiber) {
		sum := 0
		for i := 0; i < 2*n; i++ {
			var v int
			squaredRx.Recv(self, &v)
			sum += v
		}
		result <- sum
	})

	want := 0
	for i := 0; i < n; i++ {
		want += 2 * i * i
	}

	var g errgroup.Group
	g.Go(func() error {
		select {
		case got := <-result:
			if got != want {
				return fmt.Errorf("pipeline sum = %d, want %d", got, want)
			}
			return nil
		case <-time.After(3 * time.Second):
			return fmt.Errorf("pipeline never produced a result")
		}
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
