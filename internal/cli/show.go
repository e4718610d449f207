package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/store"
	"github.com/roach88/pipejournal/internal/value"
)

// maxOutputWidth truncates rendered outputs in text listings.
const maxOutputWidth = 80

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database     string
	FailuresOnly bool
}

// ShowResult is the JSON payload of show.
type ShowResult struct {
	Journal store.Summary    `json:"journal"`
	Entries []store.RawEntry `json:"entries"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <journal-id>",
		Short: "Show the entries of a journal",
		Long: `Show every entry of a saved journal in order.

Successes are marked ✓ with their output, failures ✗ with their error
message and traceback. Input ids are shortened to the shortest prefix
that stays unique within the journal.

Examples:
  pipejournal show --db ./journals.db 0193f1
  pipejournal show --db ./journals.db 0193f1 --failures
  pipejournal show --db ./journals.db 0193f1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.FailuresOnly, "failures", false, "only show failure entries")

	return cmd
}

func runShow(opts *ShowOptions, ref string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	id, err := st.ResolveID(ctx, ref)
	if err != nil {
		return journalLookupError(ref, err)
	}

	if opts.Format == "json" {
		summary, err := st.GetSummary(ctx, id)
		if err != nil {
			return journalLookupError(ref, err)
		}
		entries, err := st.ReadEntries(ctx, id)
		if err != nil {
			return journalLookupError(ref, err)
		}
		if opts.FailuresOnly {
			kept := entries[:0]
			for _, e := range entries {
				if e.Status == journal.StatusFailure {
					kept = append(kept, e)
				}
			}
			entries = kept
		}
		return opts.formatter(cmd).JSON(CLIResponse{
			Status:    "ok",
			Data:      ShowResult{Journal: summary, Entries: entries},
			JournalID: string(id),
		})
	}

	j, err := loadJournal(ctx, st, string(id))
	if err != nil {
		return err
	}
	short, err := pipeline.ShortIDs(j)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to shorten ids", err)
	}

	w := cmd.OutOrStdout()
	writeJournalHeader(w, j)
	for _, e := range j.All() {
		if opts.FailuresOnly && e.Succeeded() {
			continue
		}
		formatEntry(w, e, short(e.Input().ID))
	}
	return nil
}

func writeJournalHeader(w io.Writer, j *pipeline.Journal) {
	meta := j.Metadata()
	succeeded, failed := j.Counts()
	fmt.Fprintf(w, "Journal %s\n", j.ID())
	if meta.Pipeline != "" {
		fmt.Fprintf(w, "Pipeline: %s\n", meta.Pipeline)
	}
	fmt.Fprintf(w, "Started:  %s\n", meta.Timestamp.Format("2006-01-02 15:04:05.000 MST"))
	if !meta.Finished.IsZero() {
		fmt.Fprintf(w, "Finished: %s\n", meta.Finished.Format("2006-01-02 15:04:05.000 MST"))
	}
	fmt.Fprintf(w, "Entries:  %d (%d succeeded, %d failed)\n\n", j.Len(), succeeded, failed)
}

// formatEntry prints one entry: ✓ with its output or ✗ with its error
// message and traceback.
func formatEntry(w io.Writer, e pipeline.Entry, shortID string) {
	if out, ok := e.Output(); ok {
		fmt.Fprintf(w, "✓ %s %s\n", shortID, truncate(renderValue(out), maxOutputWidth))
		return
	}

	jerr := e.Err()
	fmt.Fprintf(w, "✗ %s %s\n", shortID, jerr.Message)
	if jerr.Traceback != "" {
		for line := range strings.SplitSeq(strings.TrimRight(jerr.Traceback, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func renderValue(v value.Value) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
