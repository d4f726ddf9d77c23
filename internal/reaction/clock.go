package reaction

import (
	"container/heap"
	"sync"
	"time"
)

// Clock is the time source the scheduler reads and schedules continuations on.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. f runs on whatever goroutine the
	// clock chooses; the scheduler serialises itself.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a continuation scheduled with AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// NewRealClock returns a Clock backed by the wall clock and time.AfterFunc.
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock is a logical clock for deterministic runs. Time only moves on
// Advance, which fires due continuations in deadline order (FIFO for equal
// deadlines) on the calling goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers manualTimers
}

// NewManualClock creates a logical clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(max(d, 0)), seq: c.seq, f: f}
	heap.Push(&c.timers, t)
	return t
}

// Advance moves time forward by d, running every continuation that falls
// due, including ones scheduled by continuations along the way.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(max(d, 0))
	c.mu.Unlock()
	c.AdvanceTo(target)
}

// AdvanceTo moves time forward to t. Moving backwards is a no-op.
func (c *ManualClock) AdvanceTo(t time.Time) {
	for {
		c.mu.Lock()
		if len(c.timers) == 0 || c.timers[0].at.After(t) {
			if t.After(c.now) {
				c.now = t
			}
			c.mu.Unlock()
			return
		}
		next := heap.Pop(&c.timers).(*manualTimer)
		if next.at.After(c.now) {
			c.now = next.at
		}
		stopped := next.stopped
		next.fired = true
		c.mu.Unlock()

		if !stopped {
			next.f()
		}
	}
}

// Pending returns the number of scheduled continuations not yet fired.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type manualTimers []*manualTimer

func (h manualTimers) Len() int { return len(h) }
func (h manualTimers) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h manualTimers) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *manualTimers) Push(x any)   { *h = append(*h, x.(*manualTimer)) }
func (h *manualTimers) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
