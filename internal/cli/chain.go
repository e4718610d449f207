package cli

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/store"
	"github.com/roach88/pipejournal/internal/value"
)

// ChainOptions holds flags for the chain command.
type ChainOptions struct {
	RunOptions
	Pipeline string
	RunFile  string // optional run file supplying config and labels
	Failures bool   // feed the inputs of failure entries instead of outputs
}

// NewChainCommand creates the chain command.
func NewChainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChainOptions{RunOptions: RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "chain <journal-id>",
		Short: "Feed a journal's successful outputs into another pipeline",
		Long: `Run a pipeline over the successful outputs of a saved journal.

Each success entry for input "x" becomes a document with id "x.1"; failure
entries are skipped, so the new journal has one entry per success of the
source journal. With --failures the inputs of the failure entries are run
again instead, keeping their ids. The journal id may be abbreviated to a
unique prefix.

Examples:
  pipejournal chain --db ./journals.db --pipeline echo 0193f1
  pipejournal chain --db ./journals.db --failures --set fields=[] 0193f1
  pipejournal chain --db ./journals.db --pipeline cue --config ./strict.yaml 0193f1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "pipeline to run (defaults to the run file's or the source journal's)")
	cmd.Flags().StringVar(&opts.RunFile, "config", "", "run file supplying config overrides and labels")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "config override path=value (repeatable)")
	cmd.Flags().StringVar(&opts.IDs, "ids", "", "id scheme: uuid or ulid")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "maximum in-flight processor calls")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics to this file in the Prometheus text format")
	cmd.Flags().BoolVar(&opts.Failures, "failures", false, "re-run the inputs of failed entries instead of chaining outputs")

	return cmd
}

func runChain(opts *ChainOptions, ref string, cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	source, err := loadJournal(ctx, st, ref)
	if err != nil {
		return err
	}

	overrides := value.Object{}
	var labels map[string]string
	name := source.Metadata().Pipeline
	scheme, concurrency := opts.IDs, opts.Concurrency
	if opts.RunFile != "" {
		rf, err := pipeline.LoadRunFile(opts.RunFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load run file", err)
		}
		if overrides, err = rf.ConfigValue(); err != nil {
			return WrapExitError(ExitCommandError, "invalid run file config", err)
		}
		labels = rf.Labels
		name = rf.Pipeline
		if scheme == "" {
			scheme = rf.IDs
		}
		if concurrency == 0 {
			concurrency = rf.Concurrency
		}
	}
	if opts.Pipeline != "" {
		name = opts.Pipeline
	}

	spec, err := opts.registry().Get(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve pipeline", err)
	}
	cfg, err := resolveConfig(spec, overrides, opts.Set)
	if err != nil {
		return err
	}

	labelKey := "chained_from"
	if opts.Failures {
		labelKey = "retried_from"
	}
	labels = withLabel(labels, labelKey, string(source.ID()))
	runOpts, err := opts.runnerOptions(spec.Name, scheme, concurrency, labels)
	if err != nil {
		return err
	}

	slog.Info("chain starting", "source", source.ID(), "pipeline", spec.Name, "failures", opts.Failures)
	inputs := runner.FromResults(pipeline.Chain(ctx, source))
	if opts.Failures {
		inputs = runner.FromResults(journal.Transform(ctx, source, journal.Failures[pipeline.Document, value.Value]))
	}
	j, runErr := runner.Run(ctx, cfg, spec.Factory, inputs, runOpts...)
	return opts.writeMetrics(finishRun(ctx, opts.RootOptions, st, j, runErr, cmd))
}

// loadJournal resolves a journal id or unique prefix and loads it.
func loadJournal(ctx context.Context, st *store.Store, ref string) (*pipeline.Journal, error) {
	id, err := st.ResolveID(ctx, ref)
	if err != nil {
		return nil, journalLookupError(ref, err)
	}
	j, err := store.Load[value.Object, pipeline.Document, value.Value](ctx, st, id)
	if err != nil {
		return nil, journalLookupError(ref, err)
	}
	return j, nil
}

func journalLookupError(ref string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return WrapExitError(ExitCommandError, "journal not found: "+ref, err)
	case errors.Is(err, store.ErrAmbiguous):
		return WrapExitError(ExitCommandError, "ambiguous journal id: "+ref, err)
	}
	return WrapExitError(ExitCommandError, "failed to load journal", err)
}

func withLabel(labels map[string]string, key, val string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	maps.Copy(out, labels)
	out[key] = val
	return out
}
