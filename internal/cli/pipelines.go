package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pipejournal/internal/value"
)

// PipelineInfo describes one registered pipeline.
type PipelineInfo struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	DefaultConfig value.Object      `json:"default_config,omitempty"`
	Required      map[string]string `json:"required,omitempty"`
}

// NewPipelinesCommand creates the pipelines command.
func NewPipelinesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pipelines",
		Short:         "List registered pipelines",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelines(rootOpts, cmd)
		},
	}
}

func runPipelines(opts *RootOptions, cmd *cobra.Command) error {
	reg := opts.registry()
	infos := make([]PipelineInfo, 0, len(reg.Names()))
	for _, name := range reg.Names() {
		spec, err := reg.Get(name)
		if err != nil {
			return err
		}
		infos = append(infos, PipelineInfo{
			Name:          spec.Name,
			Description:   spec.Description,
			DefaultConfig: spec.DefaultConfig,
			Required:      spec.Required,
		})
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).JSON(CLIResponse{Status: "ok", Data: infos})
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Description)
	}
	return tw.Flush()
}
