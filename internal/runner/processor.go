package runner

import (
	"context"

	"github.com/roach88/pipejournal/internal/journal"
)

// Processor transforms one input into one output. A returned error is a
// processing error: it becomes a failure entry and the run continues.
type Processor[I journal.Identified, O any] interface {
	Process(ctx context.Context, in I) (O, error)
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc[I journal.Identified, O any] func(ctx context.Context, in I) (O, error)

// Process calls f(ctx, in).
func (f ProcessorFunc[I, O]) Process(ctx context.Context, in I) (O, error) {
	return f(ctx, in)
}

// Factory binds a configuration and returns the processor used for the whole
// run. Run calls it exactly once.
type Factory[C any, I journal.Identified, O any] func(cfg C) Processor[I, O]
