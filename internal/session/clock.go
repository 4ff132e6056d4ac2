package session

import (
	"sync"
	"time"
)

// Clock provides time and timer scheduling for the engine.
// This interface allows timers to be driven manually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot timer handle. Stop is idempotent:
// stopping an already-stopped or already-fired timer returns false and has
// no other effect.
type Timer interface {
	Stop() bool
}

// RealClock schedules on the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc arms a system timer that runs f in its own goroutine.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock is a Clock whose time only moves when Advance is called.
// Timer callbacks run synchronously inside Advance, in deadline order,
// which makes race-prone teardown sequences reproducible in tests.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManualClock creates a manual clock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has advanced past d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, when: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every due timer in deadline
// order. Callbacks run without the clock lock held, so they may arm new
// timers or stop existing ones.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.popDueLocked(target)
		if t == nil {
			break
		}
		if t.when.After(c.now) {
			c.now = t.when
		}
		fn := t.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// PendingTimers reports how many timers are armed and not yet fired.
func (c *ManualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// popDueLocked removes and returns the earliest timer due at or before
// target, or nil if none is due. Caller holds c.mu.
func (c *ManualClock) popDueLocked(target time.Time) *manualTimer {
	best := -1
	for i, t := range c.timers {
		if t.when.After(target) {
			continue
		}
		if best == -1 || t.when.Before(c.timers[best].when) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	t := c.timers[best]
	t.fired = true
	c.timers = append(c.timers[:best], c.timers[best+1:]...)
	return t
}

type manualTimer struct {
	clock   *ManualClock
	when    time.Time
	fn      func()
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}
