package scheduler

import (
	"sort"
	"sync"
	"time"
)

// fakeClock is a deterministic, manually-advanced Clock for tests. Advance
// fires any armed timers whose deadline has elapsed, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at        time.Time
	fn        func()
	cancelled bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) CancelFunc {
	c.mu.Lock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.cancelled {
			return false
		}
		t.cancelled = true
		return true
	}
}

// Advance moves the clock forward by d and runs every timer due at or before
// the new time, earliest deadline first.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now

	var due []*fakeTimer
	var remaining []*fakeTimer
	for _, t := range c.timers {
		if t.cancelled {
			continue
		}
		if !t.at.After(target) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// manualFramePump gives tests direct control over when a frame happens,
// instead of racing real timers.
type manualFramePump struct {
	mu sync.Mutex
	cb func(now time.Time)
}

func (p *manualFramePump) RequestFrame(cb func(now time.Time)) CancelFunc {
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cb = nil
		return true
	}
}

func (p *manualFramePump) Fire(now time.Time) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb != nil {
		cb(now)
	}
}

func newTestScheduler(opts Options) (*Scheduler, *fakeClock, *manualFramePump) {
	clock := newFakeClock(time.Unix(0, 0))
	pump := &manualFramePump{}
	opts.Clock = clock
	opts.FramePump = pump
	return New(opts), clock, pump
}
