// Package cli implements the dataflow command line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/deploy"
	"github.com/randalmurphal/dataflow/pkg/dataflow/op"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Env overrides process environment variables when pipeline files
	// are expanded.
	Env map[string]string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dataflow",
		Short: "Build and run dataflow pipelines",
		Long: `Build and run dataflow pipelines declared in YAML, JSON or HCL.

Events flow forward from inputs to outputs; acknowledgements and
backpressure flow back upstream as contraflow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringToStringVarP(&opts.Env, "env", "e", nil, "set a variable for ${NAME} expansion (KEY=VALUE)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewKindsCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes pipeline logs to w. Verbose mode lowers the level to debug.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// loadOptions expands variables from the process environment overlaid
// with --env values. Undefined variables are errors.
func (o *RootOptions) loadOptions() []config.LoadOption {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	maps.Copy(env, o.Env)
	return []config.LoadOption{config.WithEnv(env), config.WithMissing(config.MissingError)}
}

// load reads and builds the pipeline at path with the stock operators.
func (o *RootOptions) load(f *OutputFormatter, path string, logger *slog.Logger) (*config.PipelineSpec, *dataflow.Pipeline, error) {
	spec, err := config.LoadFile(path, o.loadOptions()...)
	if err != nil {
		return nil, nil, f.Error(ExitFailure, ErrCodeLoad, fmt.Sprintf("cannot load %s", path), err)
	}
	f.VerboseLog("loaded pipeline %q: %d nodes, %d links", spec.Name, len(spec.Nodes), len(spec.Links))

	p, err := deploy.Build(spec, op.Kinds(), dataflow.WithLogger(logger))
	if err != nil {
		return nil, nil, f.Error(ExitFailure, ErrCodeBuild, fmt.Sprintf("cannot build pipeline %q", spec.Name), err)
	}
	return spec, p, nil
}
