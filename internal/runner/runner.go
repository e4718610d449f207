package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/pipejournal/internal/journal"
)

// PanicErrorType is the journal.Error type recorded when a processor panics.
const PanicErrorType = "panic"

// Run binds cfg to factory, processes every input of the stream and returns
// the journal of the run.
//
// The journal has exactly one entry per input pulled from the stream, in
// stream order, with Seq 1..n. A processor error or panic becomes a failure
// entry and the run continues with the next input.
//
// The run stops early when:
//   - the stream yields an error (ErrCodeStream)
//   - an input has no identifier (ErrCodeMalformedInput)
//   - ctx is cancelled (ErrCodeCancelled): no further inputs are pulled,
//     calls already in flight finish and are recorded
//
// In all three cases Run returns the partial journal together with a
// *RunError. Entries recorded before the failure are never modified.
func Run[C any, I journal.Identified, O any](
	ctx context.Context,
	cfg C,
	factory Factory[C, I, O],
	inputs Stream[I],
	opts ...Option,
) (*journal.Journal[C, I, O], error) {
	o := newOptions(opts)

	id := journal.ID(o.ids.Generate())
	meta := journal.RunMetadata{
		Timestamp: o.clock.Now(),
		Pipeline:  o.pipeline,
		Version:   o.version,
		Host:      o.host,
		Args:      o.args,
		Labels:    o.labels,
	}

	ctx, span := o.tracer.Start(ctx, "pipejournal.run", trace.WithAttributes(
		attribute.String("journal.id", string(id)),
		attribute.String("pipeline", o.pipeline),
		attribute.Int("concurrency", o.concurrency),
	))
	defer span.End()

	r := &run[C, I, O]{
		opts:    o,
		cfg:     cfg,
		builder: journal.NewBuilder[C, I, O](id, meta, cfg),
		seq:     NewSequencer(),
		log:     o.logger.With("journal", string(id), "pipeline", o.pipeline),
	}

	r.log.Info("run started", "concurrency", o.concurrency)
	err := r.execute(ctx, factory, inputs)
	j := r.builder.Finish(o.clock.Now())
	succeeded, failed := j.Counts()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome := "error"
		var re *RunError
		if errors.As(err, &re) {
			outcome = strings.ToLower(string(re.Code))
		}
		o.metrics.finishRun(o.pipeline, outcome)
		r.log.Warn("run stopped",
			"error", err,
			"entries", j.Len(),
			"succeeded", succeeded,
			"failed", failed,
		)
		return j, err
	}

	o.metrics.finishRun(o.pipeline, "completed")
	r.log.Info("run finished",
		"entries", j.Len(),
		"succeeded", succeeded,
		"failed", failed,
	)
	return j, nil
}

// run is the state of one Run invocation. Only the goroutine calling Run
// touches builder.
type run[C any, I journal.Identified, O any] struct {
	opts    *options
	cfg     C
	builder *journal.Builder[C, I, O]
	seq     *Sequencer
	log     *slog.Logger
}

func (r *run[C, I, O]) execute(ctx context.Context, factory Factory[C, I, O], inputs Stream[I]) error {
	if factory == nil {
		return &RunError{Code: ErrCodeInvalidFactory, Message: "factory is nil"}
	}
	proc := factory(r.cfg)
	if proc == nil {
		return &RunError{Code: ErrCodeInvalidFactory, Message: "factory returned no processor"}
	}
	if inputs == nil {
		return nil
	}

	next, stop := iter.Pull2(iter.Seq2[I, error](inputs))
	defer stop()

	// pending holds in-flight attempts in dispatch order. The head is always
	// the next entry to append.
	var pending []<-chan journal.Entry[I, O]
	var runErr error

	appendHead := func() {
		e := <-pending[0]
		pending = pending[1:]
		if err := r.builder.Append(e); err != nil && runErr == nil {
			runErr = &RunError{Code: ErrCodeJournal, Message: "append entry", Seq: e.Metadata().Seq, Err: err}
		}
	}

	for runErr == nil {
		if len(pending) >= r.opts.concurrency {
			appendHead()
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = newCancelledError(r.seq.Current()+1, err)
			break
		}

		in, err, ok := next()
		if !ok {
			break
		}
		pos := r.seq.Current() + 1
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				runErr = newCancelledError(pos, err)
			} else {
				runErr = newStreamError(pos, err)
			}
			break
		}
		if err := journal.Validate(in); err != nil {
			runErr = newMalformedInputError(pos, err)
			break
		}
		pending = append(pending, r.dispatch(ctx, proc, in))
	}

	for len(pending) > 0 {
		appendHead()
	}
	return runErr
}

// dispatch stamps the attempt metadata and starts the Process call. Seq,
// attempt id and timestamp are assigned here, in stream order.
func (r *run[C, I, O]) dispatch(ctx context.Context, proc Processor[I, O], in I) <-chan journal.Entry[I, O] {
	meta := journal.EntryMetadata{
		Seq:       r.seq.Next(),
		AttemptID: journal.ID(r.opts.ids.Generate()),
		Timestamp: r.opts.clock.Now(),
	}

	done := make(chan journal.Entry[I, O], 1)
	if r.opts.concurrency == 1 {
		done <- r.attempt(ctx, proc, meta, in)
		return done
	}
	go func() {
		done <- r.attempt(ctx, proc, meta, in)
	}()
	return done
}

func (r *run[C, I, O]) attempt(ctx context.Context, proc Processor[I, O], meta journal.EntryMetadata, in I) journal.Entry[I, O] {
	ctx, span := r.opts.tracer.Start(ctx, "pipejournal.process", trace.WithAttributes(
		attribute.String("input.id", string(in.Identifier())),
		attribute.String("attempt.id", string(meta.AttemptID)),
		attribute.Int64("seq", meta.Seq),
	))
	defer span.End()

	r.opts.metrics.startAttempt(r.opts.pipeline)
	out, err := invoke(ctx, proc, in)
	meta.Duration = r.opts.clock.Now().Sub(meta.Timestamp)

	if err != nil {
		jerr := journal.NormalizeError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, jerr.Message)
		r.opts.metrics.finishAttempt(r.opts.pipeline, string(journal.StatusFailure), meta.Duration)
		r.log.Debug("entry failed",
			"seq", meta.Seq,
			"input", string(in.Identifier()),
			"type", jerr.Type,
			"error", jerr.Message,
		)
		return journal.Failed[I, O](meta, in, jerr)
	}

	r.opts.metrics.finishAttempt(r.opts.pipeline, string(journal.StatusSuccess), meta.Duration)
	r.log.Debug("entry succeeded",
		"seq", meta.Seq,
		"input", string(in.Identifier()),
		"duration", meta.Duration,
	)
	return journal.Succeeded(meta, in, out)
}

// invoke calls proc, converting a panic into a journal.Error carrying the
// goroutine stack as its traceback.
func invoke[I journal.Identified, O any](ctx context.Context, proc Processor[I, O], in I) (out O, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero O
			out = zero
			err = &journal.Error{
				Message:   fmt.Sprintf("processor panicked: %v", rec),
				Type:      PanicErrorType,
				Traceback: string(debug.Stack()),
			}
		}
	}()
	return proc.Process(ctx, in)
}
