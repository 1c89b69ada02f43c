package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/bonfire/internal/present"
)

// Epoch is the default start time of fake clocks.
var Epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// FakeClock is a manually driven clock for tests.
//
// Time only moves through Advance, or, for clocks created with
// NewAutoAdvanceClock, whenever a caller waits on After. Auto-advance lets a
// bounded retry loop run to its deadline instantly and deterministically.
//
// Thread-safety: all methods are safe for concurrent use. Timer callbacks
// run outside the clock's lock, on the goroutine that advanced the clock.
type FakeClock struct {
	mu          sync.Mutex
	now         time.Time
	autoAdvance bool
	timers      []*FakeTimer
	waits       int
}

// NewFakeClock creates a clock frozen at start (Epoch if zero).
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// NewAutoAdvanceClock creates a clock whose After jumps time forward by the
// requested duration and returns an already-fired channel.
func NewAutoAdvanceClock(start time.Time) *FakeClock {
	c := NewFakeClock(start)
	c.autoAdvance = true
	return c
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives the fake time once d has elapsed.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	c.waits++
	if c.autoAdvance {
		c.mu.Unlock()
		c.Advance(d)
		ch <- c.Now()
		return ch
	}
	c.timers = append(c.timers, &FakeTimer{clock: c, at: c.now.Add(d), ch: ch})
	c.mu.Unlock()

	return ch
}

// AfterFunc schedules f to run once d has elapsed.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) present.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &FakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d and fires every timer that became due,
// in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			return c.timers[i].at.Before(c.timers[j].at)
		})
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		c.now = t.at
		c.mu.Unlock()

		t.fire()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Waits returns how many times After has been called.
func (c *FakeClock) Waits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waits
}

// Reset moves the clock back to start and drops all timers.
func (c *FakeClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if start.IsZero() {
		start = Epoch
	}
	c.now = start
	c.timers = nil
	c.waits = 0
}

// FakeTimer is a timer registered on a FakeClock.
type FakeTimer struct {
	clock *FakeClock
	at    time.Time
	fn    func()
	ch    chan time.Time
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *FakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (t *FakeTimer) fire() {
	if t.fn != nil {
		t.fn()
		return
	}
	select {
	case t.ch <- t.at:
	default:
	}
}
