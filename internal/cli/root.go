package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/cueproc"
	"github.com/roach88/pipejournal/internal/pipeline"
)

// Version is stamped into the run metadata of every journal.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Registry resolves pipeline names. Defaults to DefaultRegistry.
	Registry *pipeline.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultRegistry returns a registry holding the built-in pipelines.
func DefaultRegistry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	reg.MustRegister(pipeline.EchoSpec())
	reg.MustRegister(cueproc.PipelineSpec())
	reg.MustRegister(cueproc.CheckSpec())
	return reg
}

// NewRootCommand creates the root command for the pipejournal CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithRegistry(DefaultRegistry())
}

// NewRootCommandWithRegistry creates the root command over a custom
// pipeline registry.
func NewRootCommandWithRegistry(reg *pipeline.Registry) *cobra.Command {
	opts := &RootOptions{Registry: reg}

	cmd := &cobra.Command{
		Use:   "pipejournal",
		Short: "pipejournal - journaled processing pipelines",
		Long: `Run processing pipelines over streams of documents and record every
attempt, success or failure, in a durable journal.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), opts.Verbose))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewChainCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewPipelinesCommand(opts))

	return cmd
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) registry() *pipeline.Registry {
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}
	return o.Registry
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
