package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/store"
	"github.com/roach88/pipejournal/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Set         []string // config overrides, path=value
	IDs         string   // id scheme, overrides the run file
	Concurrency int      // overrides the run file when > 0
	MetricsFile string   // Prometheus text file written after the run

	metrics *prometheus.Registry

	// IDGenerator overrides the id scheme (for testing).
	IDGenerator runner.IDGenerator

	// Clock overrides the system clock (for testing).
	Clock runner.Clock
}

// RunSummary is the output of run and chain.
type RunSummary struct {
	JournalID journal.ID `json:"journal_id"`
	Pipeline  string     `json:"pipeline"`
	Entries   int        `json:"entries"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Digest    string     `json:"digest"`
	Stopped   string     `json:"stopped,omitempty"`
}

func (s RunSummary) String() string {
	out := fmt.Sprintf("Journal %s (%s): %d entries, %d succeeded, %d failed",
		s.JournalID, s.Pipeline, s.Entries, s.Succeeded, s.Failed)
	if s.Stopped != "" {
		out += "\nStopped early: " + s.Stopped
	}
	return out
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <run-file.yaml>",
		Short: "Run a pipeline over JSON Lines documents",
		Long: `Run a registered pipeline over the documents named by a run file and
save the resulting journal.

The run file names the pipeline, its configuration overrides and the
JSON Lines inputs. Every document gets exactly one journal entry. A
malformed document or an unreadable input stops the run; the entries
recorded so far are still saved.

Example:
  pipejournal run --db ./journals.db ./people.yaml
  pipejournal run --db ./journals.db ./people.yaml --set concrete=false --ids ulid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "config override path=value (repeatable)")
	cmd.Flags().StringVar(&opts.IDs, "ids", "", "id scheme: uuid or ulid")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "maximum in-flight processor calls")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics to this file in the Prometheus text format")

	return cmd
}

func runPipeline(opts *RunOptions, runFilePath string, cmd *cobra.Command) error {
	rf, err := pipeline.LoadRunFile(runFilePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run file", err)
	}

	spec, err := opts.registry().Get(rf.Pipeline)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve pipeline", err)
	}

	overrides, err := rf.ConfigValue()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid run file config", err)
	}
	cfg, err := resolveConfig(spec, overrides, opts.Set)
	if err != nil {
		return err
	}

	f, err := os.Open(rf.Inputs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open inputs", err)
	}
	defer f.Close()

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	scheme := rf.IDs
	if opts.IDs != "" {
		scheme = opts.IDs
	}
	concurrency := rf.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	runOpts, err := opts.runnerOptions(spec.Name, scheme, concurrency, rf.Labels)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	slog.Info("run starting", "pipeline", spec.Name, "inputs", rf.Inputs, "db", opts.Database)
	j, runErr := runner.Run(ctx, cfg, spec.Factory, pipeline.ReadDocuments(f), runOpts...)
	return opts.writeMetrics(finishRun(ctx, opts.RootOptions, st, j, runErr, cmd))
}

// resolveConfig merges --set overrides over the run file's and checks the
// result against the spec.
func resolveConfig(spec pipeline.Spec, overrides value.Object, set []string) (value.Object, error) {
	flags, err := pipeline.ParseOverrides(set)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --set", err)
	}
	cfg, err := spec.Config(pipeline.MergeConfig(overrides, flags))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid pipeline config", err)
	}
	return cfg, nil
}

func (opts *RunOptions) runnerOptions(name, scheme string, concurrency int, labels map[string]string) ([]runner.Option, error) {
	gen := opts.IDGenerator
	if gen == nil {
		var err error
		gen, err = runner.NewIDGenerator(scheme)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid id scheme", err)
		}
	}

	runOpts := []runner.Option{
		runner.WithIDGenerator(gen),
		runner.WithPipeline(name),
		runner.WithVersion(Version),
		runner.WithArgs(os.Args),
		runner.WithLabels(labels),
		runner.WithLogger(slog.Default()),
		runner.WithConcurrency(max(concurrency, 1)),
	}
	if opts.MetricsFile != "" {
		opts.metrics = prometheus.NewRegistry()
		m := runner.NewMetrics(opts.metrics)
		if err := m.Register(); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, runner.WithMetrics(m))
	}
	if opts.Clock != nil {
		runOpts = append(runOpts, runner.WithClock(opts.Clock))
	} else if host, err := os.Hostname(); err == nil {
		runOpts = append(runOpts, runner.WithHost(host))
	}
	return runOpts, nil
}

// finishRun saves whatever journal the run produced and reports it. A run
// that stopped early exits with ExitFailure after its partial journal is
// saved.
func finishRun(ctx context.Context, opts *RootOptions, st *store.Store, j *pipeline.Journal, runErr error, cmd *cobra.Command) error {
	if j == nil {
		return WrapExitError(ExitCommandError, "run failed", runErr)
	}

	// Save even when cancelled: the partial journal is the record of what ran.
	if err := store.Save(context.WithoutCancel(ctx), st, j); err != nil {
		return WrapExitError(ExitCommandError, "failed to save journal", err)
	}

	digest, err := journal.Digest(j)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest journal", err)
	}
	succeeded, failed := j.Counts()
	summary := RunSummary{
		JournalID: j.ID(),
		Pipeline:  j.Metadata().Pipeline,
		Entries:   j.Len(),
		Succeeded: succeeded,
		Failed:    failed,
		Digest:    digest,
	}

	out := opts.formatter(cmd)
	if runErr == nil {
		return out.Success(summary)
	}

	summary.Stopped = runErr.Error()
	code := "E_RUN_STOPPED"
	var re *runner.RunError
	if errors.As(runErr, &re) {
		code = "E_" + string(re.Code)
	}
	if err := out.Failure(code, runErr.Error(), summary, string(j.ID())); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, "run stopped early", runErr)
}

// writeMetrics writes the run's metrics to --metrics-file, also after a run
// that stopped early. err is the run's own result and takes precedence.
func (opts *RunOptions) writeMetrics(err error) error {
	if opts.metrics == nil {
		return err
	}
	if werr := prometheus.WriteToTextfile(opts.MetricsFile, opts.metrics); werr != nil {
		slog.Error("failed to write metrics", "path", opts.MetricsFile, "error", werr)
		if err == nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", werr)
		}
		return err
	}
	slog.Debug("metrics written", "path", opts.MetricsFile)
	return err
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// signalContext returns the command's context, cancelled on SIGINT or
// SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
