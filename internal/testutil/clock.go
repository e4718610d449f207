package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a DeterministicClock created with
// NewDeterministicClock.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultStep is how far a DeterministicClock advances on every Now call.
const DefaultStep = time.Millisecond

// DeterministicClock is a thread-safe fake wall clock for tests.
//
// Every call to Now returns the current instant and then advances it by a
// fixed step, so a run over the same inputs produces identical timestamps and
// durations. Reset rewinds it for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
	calls int64
}

// NewDeterministicClock creates a clock starting at Epoch with DefaultStep.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(Epoch, DefaultStep)
}

// NewDeterministicClockAt creates a clock starting at start, advancing by
// step per call.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	c.calls++
	return t
}

// Calls returns how many times Now has been called since the last Reset.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock to its start instant.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
	c.calls = 0
}
