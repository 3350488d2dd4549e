package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant every test clock starts at unless told otherwise.
var Epoch = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// Clock is a manually advanced wall clock for tests.
//
// Pass Clock.Now wherever a func() time.Time is expected. The same
// scenario with a fresh Clock produces identical timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewClock creates a clock fixed at start.
//
// A zero start means Epoch.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	return &Clock{start: start, now: start}
}

// NewSteppingClock creates a clock that advances by step after every Now call,
// so successive records get distinct, ordered timestamps.
func NewSteppingClock(start time.Time, step time.Duration) *Clock {
	c := NewClock(start)
	c.step = step
	return c
}

// Now returns the current instant, then applies the step, if any.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset moves the clock back to its start.
//
// Used for test reuse. After Reset(), Now() returns the start instant again.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
