// Package runner executes a processor over an input stream and records every
// attempt in a journal.
//
// A run binds one configuration to a Factory exactly once, pulls inputs in
// order, invokes the resulting Processor per input and appends one entry per
// input to a journal.Builder. Processing errors never abort a run: they are
// normalized into journal.Error and recorded as failure entries. Stream
// errors, malformed inputs and cancellation end the run early and are
// returned as *RunError together with the partial journal.
//
// Thread-safety model:
//   - Run: the calling goroutine is the only writer of the journal
//   - WithConcurrency(n): up to n Process calls in flight; entries are still
//     appended by the calling goroutine in input-stream order
//   - Processor implementations must be safe for concurrent use when n > 1
package runner
