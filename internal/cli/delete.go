package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Database string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <journal-id>",
		Short:         "Delete a saved journal and its entries",
		Example:       `  pipejournal delete --db ./journals.db 0193f1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDelete(opts *DeleteOptions, ref string, cmd *cobra.Command) error {
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
	if err := st.Delete(ctx, id); err != nil {
		return journalLookupError(ref, err)
	}
	return opts.formatter(cmd).Success(fmt.Sprintf("Deleted journal %s", id))
}
