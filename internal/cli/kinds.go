package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/dataflow/pkg/dataflow/op"
)

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the operator kinds pipeline files can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := op.Kinds().Names()
			return rootOpts.formatter(cmd).Success(names, strings.Join(names, "\n"))
		},
	}
}
