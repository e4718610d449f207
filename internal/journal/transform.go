package journal

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
)

// Transformer maps one entry to at most one result. Returning ok=false skips
// the entry. A non-nil error stops the transform. The transformer may block
// (for example on I/O) and should honor ctx.
type Transformer[I Identified, O any, R Identified] func(ctx context.Context, e Entry[I, O]) (result R, ok bool, err error)

// ErrConsumed is yielded when a Results sequence is iterated a second time.
var ErrConsumed = errors.New("journal: transform results already consumed")

// Results is a lazy, single-pass sequence of transform results. Nothing is
// computed until All is ranged over, and it can be ranged over only once.
type Results[R any] struct {
	seq  iter.Seq2[R, error]
	used atomic.Bool
}

// All returns the result sequence. Each element is either a result with a nil
// error, or a zero result with the error that ended the sequence. The first
// range consumes the sequence; later ranges yield only ErrConsumed.
func (r *Results[R]) All() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		if !r.used.CompareAndSwap(false, true) {
			var zero R
			yield(zero, ErrConsumed)
			return
		}
		r.seq(yield)
	}
}

// Collect drains the sequence into a slice. It stops at the first error and
// returns the results gathered so far with it.
func (r *Results[R]) Collect() ([]R, error) {
	var out []R
	for res, err := range r.All() {
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Transform derives a result sequence from j's entries.
//
// Entries are visited in insertion order. A result is produced for an entry
// exactly when fn returns ok=true; results keep the relative order of their
// entries and are never duplicated. Every result must satisfy the identifier
// contract: one that doesn't ends the sequence with ErrMissingIdentifier.
// Cancelling ctx ends the sequence with ctx.Err().
func Transform[C any, I Identified, O any, R Identified](ctx context.Context, j *Journal[C, I, O], fn Transformer[I, O, R]) *Results[R] {
	entries := j.entries
	return &Results[R]{
		seq: func(yield func(R, error) bool) {
			var zero R
			for _, e := range entries {
				if err := ctx.Err(); err != nil {
					yield(zero, err)
					return
				}

				res, ok, err := fn(ctx, e)
				if err != nil {
					yield(zero, fmt.Errorf("transform entry %d: %w", e.meta.Seq, err))
					return
				}
				if !ok {
					continue
				}
				if err := Validate(res); err != nil {
					yield(zero, fmt.Errorf("transform entry %d: %w", e.meta.Seq, err))
					return
				}
				if !yield(res, nil) {
					return
				}
			}
		},
	}
}

// Successes is a Transformer yielding the output of every success entry and
// skipping failures. The output type must itself carry an identifier.
func Successes[I Identified, O Identified](_ context.Context, e Entry[I, O]) (O, bool, error) {
	out, ok := e.Output()
	return out, ok, nil
}

// Failures is a Transformer yielding the input of every failure entry, for
// retrying failed inputs in a follow-on run.
func Failures[I Identified, O any](_ context.Context, e Entry[I, O]) (I, bool, error) {
	if e.Succeeded() {
		var zero I
		return zero, false, nil
	}
	return e.input, true, nil
}
