package runner

import (
	"context"
	"iter"

	"github.com/roach88/pipejournal/internal/journal"
)

// Stream is an ordered, possibly suspending source of inputs. A pair with a
// non-nil error is a stream error: the run stops and the error is returned.
type Stream[I any] iter.Seq2[I, error]

// FromSlice streams the elements of xs in order.
func FromSlice[I any](xs []I) Stream[I] {
	return func(yield func(I, error) bool) {
		for _, x := range xs {
			if !yield(x, nil) {
				return
			}
		}
	}
}

// FromSeq streams the values of seq.
func FromSeq[I any](seq iter.Seq[I]) Stream[I] {
	return func(yield func(I, error) bool) {
		for x := range seq {
			if !yield(x, nil) {
				return
			}
		}
	}
}

// FromChan streams values received from ch until it is closed. If ctx is
// done first, the stream ends with ctx.Err().
func FromChan[I any](ctx context.Context, ch <-chan I) Stream[I] {
	return func(yield func(I, error) bool) {
		for {
			select {
			case <-ctx.Done():
				var zero I
				yield(zero, ctx.Err())
				return
			case x, ok := <-ch:
				if !ok {
					return
				}
				if !yield(x, nil) {
					return
				}
			}
		}
	}
}

// FromResults streams the results of a journal transform, so the output of
// one run can be the input of the next. An error ending the transform
// becomes a stream error of the run that consumes it.
func FromResults[R journal.Identified](r *journal.Results[R]) Stream[R] {
	return Stream[R](r.All())
}
