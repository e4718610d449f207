package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/pipeline"
)

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	*RootOptions
	Database string
}

// SummaryResult is the JSON payload of summary.
type SummaryResult struct {
	JournalID string             `json:"journal_id"`
	Pipeline  string             `json:"pipeline,omitempty"`
	Columns   []string           `json:"columns"`
	Rows      [][]string         `json:"rows"`
	Entries   int                `json:"entries"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Metrics   map[string]float64 `json:"metrics"`
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summary <journal-id>",
		Short: "Tabulate a journal",
		Long: `Print a table of a journal's entries using its pipeline's columns
(ID, Status, Seq and Duration by default), followed by totals and the sum
of every per-entry metric.

Examples:
  pipejournal summary --db ./journals.db 0193f1
  pipejournal summary --db ./journals.db 0193f1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSummary(opts *SummaryOptions, ref string, cmd *cobra.Command) error {
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	j, err := loadJournal(cmd.Context(), st, ref)
	if err != nil {
		return err
	}

	// Journals of pipelines no longer registered still summarize with the
	// default columns.
	spec, err := opts.registry().Get(j.Metadata().Pipeline)
	if err != nil && !errors.Is(err, pipeline.ErrUnknownPipeline) {
		return WrapExitError(ExitCommandError, "failed to resolve pipeline", err)
	}

	table, agg, err := pipeline.Summarize(spec, j)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize journal", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).JSON(CLIResponse{
			Status: "ok",
			Data: SummaryResult{
				JournalID: string(j.ID()),
				Pipeline:  j.Metadata().Pipeline,
				Columns:   table.Header,
				Rows:      table.Rows,
				Entries:   agg.Entries,
				Succeeded: agg.Succeeded,
				Failed:    agg.Failed,
				Metrics:   agg.Metrics,
			},
			JournalID: string(j.ID()),
		})
	}

	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Header, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %d entries, %d succeeded, %d failed\n", agg.Entries, agg.Succeeded, agg.Failed)
	for _, name := range agg.MetricNames() {
		fmt.Fprintf(w, "  %s: %g\n", name, agg.Metrics[name])
	}
	return nil
}
