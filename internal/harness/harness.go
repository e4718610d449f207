package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/testutil"
	"github.com/roach88/pipejournal/internal/value"
)

// Harness runs scenarios against the pipelines of a registry.
type Harness struct {
	registry *pipeline.Registry
	logger   *slog.Logger
}

// New creates a harness. Pipeline logs are discarded unless a logger is
// given.
func New(reg *pipeline.Registry, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{registry: reg, logger: logger}
}

// Run executes a scenario and returns the result.
//
// An error means the scenario could not run at all: unknown pipeline,
// invalid configuration or a fatal run error. Mismatched expectations are
// reported in Result.Errors instead.
//
// Execution flow:
//  1. Resolve the pipeline and merge the scenario config over its defaults
//  2. Run it over the inline inputs with a deterministic clock and ids
//  3. Check expect clauses per input id
//  4. Evaluate assertions
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, err := h.registry.Get(scenario.Pipeline)
	if err != nil {
		return nil, err
	}

	overrides, err := scenario.ConfigValue()
	if err != nil {
		return nil, err
	}
	cfg, err := spec.Config(overrides)
	if err != nil {
		return nil, err
	}

	docs, err := scenario.Documents()
	if err != nil {
		return nil, err
	}

	j, err := runner.Run(ctx, cfg, spec.Factory, runner.FromSlice(docs),
		runner.WithClock(testutil.NewDeterministicClock()),
		runner.WithIDGenerator(testutil.NewSequentialGenerator(scenario.Name)),
		runner.WithConcurrency(max(scenario.Concurrency, 1)),
		runner.WithPipeline(spec.Name),
		runner.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run scenario %s: %w", scenario.Name, err)
	}

	digest, err := journal.Digest(j)
	if err != nil {
		return nil, err
	}

	result := NewResult(j)
	result.Digest = digest

	for _, msg := range checkExpectations(j, scenario.Expect) {
		result.AddError(msg)
	}

	actx := &AssertionContext{Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pipeline", spec.Name,
		"entries", j.Len(),
		"pass", result.Pass,
	)
	return result, nil
}

// Run executes a scenario with a fresh harness over reg.
func Run(ctx context.Context, reg *pipeline.Registry, scenario *Scenario) (*Result, error) {
	return New(reg, nil).Run(ctx, scenario)
}

// checkExpectations compares the first entry for each expected input id
// with its clause. Messages are ordered by entry position.
func checkExpectations(j *pipeline.Journal, expect map[string]ExpectClause) []string {
	var errs []string
	seen := make(map[string]bool, len(expect))
	for _, e := range j.All() {
		id := string(e.Input().ID)
		clause, ok := expect[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if err := checkEntry(e, clause); err != "" {
			errs = append(errs, fmt.Sprintf("input %s: %s", id, err))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(expect)) {
		if !seen[id] {
			errs = append(errs, fmt.Sprintf("input %s: no entry in journal", id))
		}
	}
	return errs
}

func checkEntry(e pipeline.Entry, clause ExpectClause) string {
	if string(e.Status()) != clause.Status {
		detail := ""
		if jerr := e.Err(); jerr != nil {
			detail = fmt.Sprintf(" (%s)", jerr.Message)
		}
		return fmt.Sprintf("expected status %s, got %s%s", clause.Status, e.Status(), detail)
	}

	if out, ok := e.Output(); ok && clause.Output != nil {
		want, err := value.FromAny(clause.Output)
		if err != nil {
			return fmt.Sprintf("invalid expected output: %v", err)
		}
		if !matchSubset(out, want) {
			return fmt.Sprintf("output %s does not contain %s", formatValue(out), formatValue(want))
		}
	}

	if jerr := e.Err(); jerr != nil {
		if clause.ErrorContains != "" && !strings.Contains(jerr.Message, clause.ErrorContains) {
			return fmt.Sprintf("error %q does not contain %q", jerr.Message, clause.ErrorContains)
		}
		if clause.ErrorType != "" && jerr.Type != clause.ErrorType {
			return fmt.Sprintf("expected error type %q, got %q", clause.ErrorType, jerr.Type)
		}
	}
	return ""
}
