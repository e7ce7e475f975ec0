package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a StepClock returns by default.
var Epoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock for tests: every call to Now returns
// the previous instant plus a fixed step.
//
// Golden traces need reproducible timestamps, and lot FIFO order needs them
// to increase. StepClock gives both.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewStepClock creates a clock whose first Now() is start.
// A zero start means Epoch; a zero step means one minute.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = Epoch
	}
	if step == 0 {
		step = time.Minute
	}
	return &StepClock{start: start.UTC(), step: step}
}

// Now returns the next instant.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Peek returns the instant the next Now() will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Set moves the clock so the next Now() returns t. Used to jump to another day.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = t.UTC()
	c.n = 0
}

// Reset rewinds the clock to its start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
