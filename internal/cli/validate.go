package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult is the JSON data of a successful validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Pipeline string   `json:"pipeline"`
	Nodes    int      `json:"nodes"`
	Links    int      `json:"links"`
	Inputs   []string `json:"inputs"`
	Outputs  []string `json:"outputs"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pipeline-file>",
		Short: "Check a pipeline file without running it",
		Long: `Load a pipeline file, build every operator and compile the graph.

Reports every problem found: unknown kinds, bad parameters, dangling
links, cycles and port mismatches. Nothing is pushed through the
pipeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	f := opts.formatter(cmd)
	spec, p, err := opts.load(f, path, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close(context.Background()) }()

	result := ValidationResult{
		Valid:    true,
		Pipeline: p.PipelineID(),
		Nodes:    len(spec.Nodes),
		Links:    len(spec.Links),
		Inputs:   p.Inputs(),
		Outputs:  p.Outputs(),
	}
	return f.Success(result, fmt.Sprintf("✓ %s: %d nodes, %d links, inputs %v, outputs %v",
		result.Pipeline, result.Nodes, result.Links, result.Inputs, result.Outputs))
}
