package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
	Pipeline string
	Limit    int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved journals",
		Long: `List saved journals, oldest first.

Examples:
  pipejournal list --db ./journals.db
  pipejournal list --db ./journals.db --pipeline cue --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "only list journals of this pipeline")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of journals (0 = all)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	summaries, err := st.ListJournals(cmd.Context(), store.Filter{Pipeline: opts.Pipeline, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list journals", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).JSON(CLIResponse{Status: "ok", Data: summaries})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No journals found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPIPELINE\tSTARTED\tENTRIES\tFAILED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			s.ID, s.Pipeline, s.StartedAt.Format("2006-01-02 15:04:05"), s.Entries, s.Failures)
	}
	return tw.Flush()
}
