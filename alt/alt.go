package alt

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kestrelcsp/kestrel/channel"
	"github.com/kestrelcsp/kestrel/fiber"
	"github.com/kestrelcsp/kestrel/internal/randx"
	"github.com/kestrelcsp/kestrel/sched"
)

// selState is the Alt's selection state (spec.md §3): Checking while its
// own scan is in progress, Waiting once it has registered and suspended,
// Done once a winner is recorded. Monotonic: Checking -> Waiting -> Done.
type selState int32

const (
	stateChecking selState = iota
	stateWaiting
	stateDone
)

// Stats is an observability snapshot of one Select: how many choices it
// considered, how many retries it made, and which branch won.
type Stats struct {
	ChoicesConsidered int
	Retries           int
	// Winner is the index into the Case slice that ran, or -1 for the
	// timeout branch, or -2 for skip.
	Winner int
}

// Alt is a stack-scoped, single-use guarded-choice selection owned by the
// calling fiber (spec.md §3, §4.5). Construct with New and call Select
// exactly once.
type Alt struct {
	self  *fiber.Fiber
	cases []Case

	offers   []*offerHandle
	clashed  []bool
	deadline time.Time
	hasSkip  bool

	state  atomic.Int32
	winner atomic.Int32 // 0 = unset, idx+1 = that case won, -1 = timeout

	rng   *randx.Rand
	stats Stats
}

// offerHandle is the channel.Offer passed to a single Case's channel —
// one per entered choice, so a peer's TryClaim marks exactly that case as
// the winner while Checking/Fiber read through to the shared Alt.
type offerHandle struct {
	alt   *Alt
	index int
}

func (o *offerHandle) Fiber() *fiber.Fiber { return o.alt.self }
func (o *offerHandle) Checking() bool      { return selState(o.alt.state.Load()) == stateChecking }
func (o *offerHandle) TryClaim() bool {
	if o.alt.state.CompareAndSwap(int32(stateWaiting), int32(stateDone)) {
		o.alt.winner.Store(int32(o.index + 1))
		return true
	}
	return false
}

// TryTimeout implements fiber.AltWaiter: the sleep-set invokes this when
// this Alt's deadline elapses, racing any concurrent peer commit via the
// same compare-and-swap.
func (a *Alt) TryTimeout() bool {
	if a.state.CompareAndSwap(int32(stateWaiting), int32(stateDone)) {
		a.winner.Store(-1)
		return true
	}
	return false
}

// New builds an Alt owned by self from cases, computing the clash map
// (spec.md §4.5: a channel-id seen in both a Send and a Recv choice is
// excluded from selection) and the minimum timeout deadline.
func New(self *fiber.Fiber, cases ...Case) *Alt {
	a := &Alt{
		self:    self,
		cases:   cases,
		clashed: make([]bool, len(cases)),
		rng:     randx.New(uint64(self.ID)*0x2545F4914F6CDD1D + 1),
	}
	a.offers = make([]*offerHandle, len(cases))
	for i := range cases {
		a.offers[i] = &offerHandle{alt: a, index: i}
	}

	dir := make(map[*channel.Core]kind, len(cases))
	for i, c := range cases {
		if c.kind != kindSend && c.kind != kindRecv {
			continue
		}
		if prev, ok := dir[c.core]; ok {
			if prev != c.kind {
				a.clashed[i] = true
				for j, other := range cases {
					if other.core == c.core && other.kind == prev {
						a.clashed[j] = true
					}
				}
			}
			continue
		}
		dir[c.core] = c.kind
	}

	for _, c := range cases {
		if c.kind != kindTimeout {
			continue
		}
		if c.guard != nil && !c.guard() {
			continue
		}
		d := c.tm.Get()
		if a.deadline.IsZero() || d.Before(a.deadline) {
			a.deadline = d
		}
	}
	for _, c := range cases {
		if c.kind == kindSkip && (c.guard == nil || c.guard()) {
			a.hasSkip = true
			break
		}
	}
	return a
}

// Stats returns a snapshot valid after Select has returned.
func (a *Alt) Stats() Stats { return a.stats }

// Select runs the four-phase algorithm (spec.md §4.5) and invokes exactly
// one winning closure before returning.
func (a *Alt) Select() {
	// Phase 1: Enter.
	for i := range a.cases {
		if a.clashed[i] {
			continue
		}
		c := &a.cases[i]
		if c.guard != nil && !c.guard() {
			a.clashed[i] = true // treat a false guard exactly like Clash: excluded
			continue
		}
		switch c.kind {
		case kindSend:
			committed, res := c.core.AltEnterSend(a.offers[i], c.item)
			if committed && res == channel.Ok {
				a.leaveFrom(i + 1)
				a.finish(i)
				return
			}
		case kindRecv:
			committed, res := c.core.AltEnterRecv(a.offers[i], c.item)
			if committed && res == channel.Ok {
				a.leaveFrom(i + 1)
				a.finish(i)
				return
			}
		}
	}

	// Phase 2: quick scan and commit.
	if idx, ok := a.scanAndCommit(); ok {
		a.leaveAll()
		a.finish(idx)
		return
	}

	if a.hasSkip && !a.anyChanceOfReady() {
		a.leaveAll()
		a.state.Store(int32(stateDone))
		a.winner.Store(-2)
		a.runSkip()
		return
	}

	if a.deadline.IsZero() && !a.hasSkip && a.countCandidates() == 0 {
		a.leaveAll()
		panic("alt: select with no viable choices, no timeout and no skip")
	}

	// Phase 3: Sleep.
	a.state.Store(int32(stateWaiting))
	sched.AltWait(a.self, a, a.deadline, nil)

	// Phase 4: Leave and commit.
	a.leaveAll()
	w := a.winner.Load()
	switch {
	case w == -1:
		a.runTimeout()
	case w == -2:
		a.runSkip()
	default:
		a.finish(int(w) - 1)
	}
}

func (a *Alt) countCandidates() int {
	n := 0
	for i, c := range a.cases {
		if a.clashed[i] {
			continue
		}
		if c.kind == kindSend || c.kind == kindRecv {
			n++
		}
	}
	return n
}

// anyChanceOfReady mirrors countCandidates but also true if a timeout
// exists (timeouts always eventually fire, so skip should not preempt a
// pending deadline).
func (a *Alt) anyChanceOfReady() bool {
	return a.countCandidates() > 0 || !a.deadline.IsZero()
}

func (a *Alt) scanAndCommit() (int, bool) {
	const maxRetries = 8
	for attempt := 0; attempt < maxRetries; attempt++ {
		ready := a.readyIndices()
		a.stats.ChoicesConsidered += len(ready)
		if len(ready) == 0 {
			return 0, false
		}
		idx := ready[a.rng.Intn(len(ready))]
		if !a.state.CompareAndSwap(int32(stateChecking), int32(stateDone)) {
			return 0, false
		}
		a.winner.Store(int32(idx + 1))

		c := &a.cases[idx]
		var res channel.AltResult
		if c.kind == kindSend {
			res = c.core.AltSend(c.item)
		} else {
			res = c.core.AltRecv(c.item)
		}
		if res == channel.AltOk {
			a.stats.Retries += attempt
			return idx, true
		}
		a.state.Store(int32(stateChecking))
		a.winner.Store(0)
		if res == channel.AltTryLater {
			runtime.Gosched()
		}
	}
	return 0, false
}

func (a *Alt) readyIndices() []int {
	var out []int
	for i, c := range a.cases {
		if a.clashed[i] {
			continue
		}
		switch c.kind {
		case kindSend:
			if c.core.AltReadySend() {
				out = append(out, i)
			}
		case kindRecv:
			if c.core.AltReadyRecv() {
				out = append(out, i)
			}
		}
	}
	return out
}

func (a *Alt) leaveFrom(upto int) {
	for i := 0; i < upto; i++ {
		a.leaveOne(i)
	}
}

func (a *Alt) leaveAll() {
	a.leaveFrom(len(a.cases))
}

func (a *Alt) leaveOne(i int) {
	if a.clashed[i] {
		return
	}
	c := &a.cases[i]
	switch c.kind {
	case kindSend:
		c.core.AltLeaveSend(a.offers[i])
	case kindRecv:
		c.core.AltLeaveRecv(a.offers[i])
	}
}

func (a *Alt) finish(idx int) {
	a.stats.Winner = idx
	c := &a.cases[idx]
	switch c.kind {
	case kindSend:
		if c.onSend != nil {
			c.onSend()
		}
	case kindRecv:
		if c.onRecv != nil {
			c.onRecv(*c.item)
		}
	}
}

func (a *Alt) runTimeout() {
	a.stats.Winner = -1
	for _, c := range a.cases {
		// The branch that fires is the enabled one whose deadline New
		// picked as a.deadline.
		if c.kind == kindTimeout && (c.guard == nil || c.guard()) && c.tm.Get().Equal(a.deadline) {
			c.tm.Reset()
			if c.onTimeout != nil {
				c.onTimeout()
			}
			return
		}
	}
}

func (a *Alt) runSkip() {
	a.stats.Winner = -2
	for _, c := range a.cases {
		if c.kind == kindSkip {
			if c.onSkip != nil {
				c.onSkip()
			}
			return
		}
	}
}
