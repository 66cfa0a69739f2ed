package chat

import (
	"time"

	"github.com/benbjohnson/clock"
)

type timerKey struct {
	kind string // "fresh" or "banner"
	id   string
}

type Firing struct {
	key timerKey
	gen uint64
}

type pendingTimer struct {
	timer *clock.Timer
	gen   uint64
	fn    func()
}

// Timers is a delayed-task scheduler keyed by message identity. Clock
// callbacks only post a Firing; the task itself runs when the owning event
// loop calls Run, so tasks never race with event handlers. A Firing whose key
// was cancelled or rescheduled in the meantime is ignored.
type Timers struct {
	clock   clock.Clock
	fired   chan Firing
	pending map[timerKey]*pendingTimer
	gen     uint64
	done    chan struct{}
}

func NewTimers(clk clock.Clock) *Timers {
	if clk == nil {
		clk = clock.New()
	}
	return &Timers{
		clock:   clk,
		fired:   make(chan Firing, 64),
		pending: map[timerKey]*pendingTimer{},
		done:    make(chan struct{}),
	}
}

func (t *Timers) Fired() <-chan Firing { return t.fired }

func (t *Timers) Schedule(key timerKey, after time.Duration, fn func()) {
	t.Cancel(key)
	t.gen++
	f := Firing{key: key, gen: t.gen}
	p := &pendingTimer{gen: t.gen, fn: fn}
	p.timer = t.clock.AfterFunc(after, func() {
		select {
		case t.fired <- f:
		case <-t.done:
		}
	})
	t.pending[key] = p
}

func (t *Timers) Cancel(key timerKey) {
	if p, ok := t.pending[key]; ok {
		p.timer.Stop()
		delete(t.pending, key)
	}
}

// CancelKind drops every pending timer of one kind.
func (t *Timers) CancelKind(kind string) {
	for key, p := range t.pending {
		if key.kind == kind {
			p.timer.Stop()
			delete(t.pending, key)
		}
	}
}

func (t *Timers) Pending() int { return len(t.pending) }

// Run executes a fired task if it is still current.
func (t *Timers) Run(f Firing) bool {
	p, ok := t.pending[f.key]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(t.pending, f.key)
	p.fn()
	return true
}

// Stop cancels everything and releases blocked clock callbacks.
func (t *Timers) Stop() {
	for key, p := range t.pending {
		p.timer.Stop()
		delete(t.pending, key)
	}
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}
