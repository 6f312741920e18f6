package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "graph <pipeline-file>",
		Short: "Render a pipeline as Graphviz DOT",
		Long: `Render the forward graph of a pipeline in Graphviz DOT format.

With --reverse the contraflow graph is rendered instead: every edge points
upstream, the direction acknowledgements and backpressure travel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			_, p, err := rootOpts.load(f, args[0], rootOpts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer func() { _ = p.Close(context.Background()) }()

			if err := p.WriteDOT(cmd.OutOrStdout(), reverse); err != nil {
				return WrapExitError(ExitCommandError, "write graph", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "render the contraflow graph")
	return cmd
}
