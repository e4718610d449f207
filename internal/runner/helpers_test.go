package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/testutil"
)

type item struct {
	journal.Ident
	N int `json:"n"`
}

type output struct {
	V int `json:"v"`
}

type config struct {
	Scale  int    `json:"scale"`
	FailOn string `json:"fail_on,omitempty"`
}

func newItem(id string, n int) item {
	return item{Ident: journal.Ident{ID: journal.ID(id)}, N: n}
}

func items(ids ...string) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = newItem(id, i+1)
	}
	return out
}

// scaleFactory multiplies N by Scale and fails for the input named FailOn.
var scaleFactory Factory[config, item, output] = func(cfg config) Processor[item, output] {
	return ProcessorFunc[item, output](func(_ context.Context, in item) (output, error) {
		if string(in.ID) == cfg.FailOn {
			return output{}, journal.NewError("boom")
		}
		return output{V: in.N * cfg.Scale}, nil
	})
}

// deterministic returns options giving byte-identical journals across runs.
func deterministic() []Option {
	return []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialGenerator("run")),
	}
}

var errSource = errors.New("source unavailable")

// failingAfter streams xs, then fails with errSource.
func failingAfter(xs []item) Stream[item] {
	return func(yield func(item, error) bool) {
		for _, x := range xs {
			if !yield(x, nil) {
				return
			}
		}
		yield(item{}, errSource)
	}
}

// countingSeq counts how many elements were pulled from xs.
func countingSeq(xs []item, pulled *int) iter.Seq[item] {
	return func(yield func(item) bool) {
		for _, x := range xs {
			*pulled++
			if !yield(x) {
				return
			}
		}
	}
}

func describe(e journal.Entry[item, output]) string {
	if out, ok := e.Output(); ok {
		return fmt.Sprintf("success(%s,%d)", e.Input().ID, out.V)
	}
	return fmt.Sprintf("failure(%s,%s)", e.Input().ID, e.Err().Message)
}
