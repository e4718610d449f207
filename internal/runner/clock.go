package runner

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall-clock timestamps for run and entry metadata.
// Implemented by SystemClock (production) and testutil.DeterministicClock
// (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time in UTC.
type SystemClock struct{}

// Now returns time.Now().UTC().
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Sequencer hands out entry sequence numbers.
//
// Seq is the logical position of an entry in its journal, assigned when the
// input is pulled from the stream, never when its processor finishes. That
// keeps entries in input-stream order under concurrency.
//
// Thread-safety: Sequencer is safe for concurrent use (atomic operations).
// Run only calls Next from its dispatching goroutine.
type Sequencer struct {
	seq atomic.Int64
}

// NewSequencer creates a sequencer whose first Next returns 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence number.
func (s *Sequencer) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last sequence number handed out, 0 if none.
func (s *Sequencer) Current() int64 {
	return s.seq.Load()
}
