package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/value"
)

// FanoutErrorType is the journal.Error type recorded when every processor
// of a fan-out fails.
const FanoutErrorType = "fanout"

// Slot is one named processor of a fan-out, bound to the run configuration
// together with its siblings.
type Slot[C any, I journal.Identified] struct {
	name string
	bind func(C) Processor[I, any]
}

// Name returns the slot name.
func (s Slot[C, I]) Name() string {
	return s.name
}

// Bind names a factory for use in Fanout.
func Bind[C any, I journal.Identified, O any](name string, f Factory[C, I, O]) Slot[C, I] {
	return Slot[C, I]{
		name: name,
		bind: func(cfg C) Processor[I, any] {
			p := f(cfg)
			return ProcessorFunc[I, any](func(ctx context.Context, in I) (any, error) {
				return invoke(ctx, p, in)
			})
		},
	}
}

// SlotResult is the outcome of one fan-out processor: exactly one of
// Output or Error is set.
type SlotResult struct {
	Name   string         `json:"name"`
	Output any            `json:"output,omitempty"`
	Error  *journal.Error `json:"error,omitempty"`
}

// Failed reports whether the slot's processor failed.
func (r SlotResult) Failed() bool {
	return r.Error != nil
}

// Outputs is the output of a fan-out processor, one result per slot in
// slot order.
type Outputs []SlotResult

// Output returns the output of slot i as an O. A failed slot returns its
// error. Outputs decoded from JSON hold generic values; those are converted
// to O through their JSON encoding.
func Output[O any](outs Outputs, i int) (O, error) {
	var zero O
	if i < 0 || i >= len(outs) {
		return zero, fmt.Errorf("fanout output %d out of range [0,%d)", i, len(outs))
	}
	r := outs[i]
	if r.Error != nil {
		return zero, r.Error
	}
	if o, ok := r.Output.(O); ok {
		return o, nil
	}
	data, err := json.Marshal(r.Output)
	if err != nil {
		return zero, fmt.Errorf("fanout output %q: %w", r.Name, err)
	}
	var o O
	if err := json.Unmarshal(data, &o); err != nil {
		return zero, fmt.Errorf("fanout output %q as %T: %w", r.Name, zero, err)
	}
	return o, nil
}

// Fanout builds a factory running several processors on every input.
//
// All slots are bound to the same configuration and every slot runs to
// completion for every input, in slot order. The entry fails only when every
// slot fails; the failure's details list each slot's error. Otherwise the
// entry succeeds with an Outputs holding each slot's output or error.
func Fanout[C any, I journal.Identified](slots ...Slot[C, I]) Factory[C, I, Outputs] {
	return func(cfg C) Processor[I, Outputs] {
		procs := make([]Processor[I, any], len(slots))
		for i, s := range slots {
			procs[i] = s.bind(cfg)
		}

		return ProcessorFunc[I, Outputs](func(ctx context.Context, in I) (Outputs, error) {
			if len(procs) == 0 {
				return nil, journal.NewError("fanout has no processors").WithType(FanoutErrorType)
			}

			outs := make(Outputs, len(procs))
			failures := 0
			for i, p := range procs {
				outs[i].Name = slots[i].name
				out, err := p.Process(ctx, in)
				if err != nil {
					outs[i].Error = journal.NormalizeError(err)
					failures++
					continue
				}
				outs[i].Output = out
			}

			if failures < len(outs) {
				return outs, nil
			}
			details := make(value.Array, len(outs))
			for i, r := range outs {
				details[i] = value.ObjectOf(
					value.P("slot", value.String(r.Name)),
					value.P("message", value.String(r.Error.Message)),
					value.P("type", value.String(r.Error.Type)),
				)
			}
			return nil, journal.Errorf("all %d processors failed", len(outs)).
				WithType(FanoutErrorType).
				WithDetails(details)
		})
	}
}
