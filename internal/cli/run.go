package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/signal"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Input        string
	Origin       string
	Tick         time.Duration
	CloseTimeout time.Duration
}

// RunSummary is reported on stderr in verbose mode.
type RunSummary struct {
	Pushed  int `json:"pushed"`
	Emitted int `json:"emitted"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline-file>",
		Short: "Push JSON lines from stdin through a pipeline",
		Long: `Build a pipeline and push every line of stdin into it as one event.

Each line must be a JSON value. Events get consecutive ids starting at 1
under a single origin. Everything the pipeline's outputs emit is written
to stdout as one JSON object per line. At end of input the pipeline is
closed, so windows and other buffering operators flush.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "input node to push into (default: the first declared input)")
	cmd.Flags().StringVar(&opts.Origin, "origin", "stdin", "origin name stamped on every event")
	cmd.Flags().DurationVar(&opts.Tick, "tick", 0, "deliver tick signals at this interval (0 disables)")
	cmd.Flags().DurationVar(&opts.CloseTimeout, "close-timeout", 5*time.Second, "how long to wait for in-flight work at exit")

	return cmd
}

func runPipeline(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions, path string) error {
	f := rootOpts.formatter(cmd)
	logger := rootOpts.logger(cmd.ErrOrStderr())

	spec, p, err := rootOpts.load(f, path, logger)
	if err != nil {
		return err
	}

	input := opts.Input
	if input == "" {
		input = spec.Inputs[0]
	}

	out := &lineWriter{w: cmd.OutOrStdout()}
	if err := bindOutputs(p, out); err != nil {
		_ = p.Close(context.Background())
		return WrapExitError(ExitCommandError, "connect output", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var ticking sync.WaitGroup
	if opts.Tick > 0 {
		inj := signal.NewInjector(signal.WithInterval(opts.Tick), signal.WithLogger(logger))
		if err := inj.Attach(p); err != nil {
			_ = p.Close(context.Background())
			return WrapExitError(ExitCommandError, "attach ticker", err)
		}
		ticking.Add(1)
		go func() {
			defer ticking.Done()
			_ = inj.Run(ctx)
		}()
	}

	pushed, pushErr := pushLines(ctx, p, input, opts.Origin, cmd.InOrStdin(), logger)

	cancel()
	ticking.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), opts.CloseTimeout)
	defer closeCancel()
	closeErr := p.Close(closeCtx)

	summary := RunSummary{Pushed: pushed, Emitted: out.count()}
	f.VerboseLog("pushed %d events, emitted %d", summary.Pushed, summary.Emitted)

	if err := errors.Join(pushErr, closeErr); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s: run pipeline", ErrCodeRun), err)
	}
	return nil
}

// bindOutputs attaches out to every port of every output node, including
// err, so nothing an output emits is dropped.
func bindOutputs(p *dataflow.Pipeline, out *lineWriter) error {
	for _, name := range p.Outputs() {
		_, ports, _ := p.Ports(name)
		if !slices.Contains(ports, dataflow.PortErr) {
			ports = append(ports, dataflow.PortErr)
		}
		for _, port := range ports {
			if err := p.ConnectPort(name, port, out.sink(name, port)); err != nil {
				return err
			}
		}
	}
	return nil
}

// pushLines pushes each non-empty line of r as a data event and returns
// how many were pushed.
func pushLines(ctx context.Context, p *dataflow.Pipeline, input, origin string, r io.Reader, logger *slog.Logger) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var id uint64
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		payload, err := value.Parse(raw)
		if err != nil {
			return int(id), fmt.Errorf("line %d: %w", line, err)
		}
		id++
		ev := event.NewData(origin, id, payload, event.WithIngestNs(uint64(time.Now().UnixNano())))
		if err := p.Push(ctx, input, ev); err != nil {
			return int(id) - 1, fmt.Errorf("line %d: %w", line, err)
		}
		logger.Debug("pushed", "line", line, "id", id)
	}
	if err := scanner.Err(); err != nil {
		return int(id), fmt.Errorf("read input: %w", err)
	}
	return int(id), nil
}

// outputLine is one emitted event on stdout. Port is omitted for out.
type outputLine struct {
	Output  string          `json:"output"`
	Port    string          `json:"port,omitempty"`
	Origin  string          `json:"origin"`
	ID      uint64          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// lineWriter serialises sink deliveries from concurrent cascades.
type lineWriter struct {
	mu      sync.Mutex
	w       io.Writer
	emitted int
}

func (l *lineWriter) sink(output, port string) dataflow.Sink {
	if port == dataflow.PortOut {
		port = ""
	}
	return dataflow.ErrorSink(func(_ context.Context, ev *event.Event) error {
		payload, err := value.Marshal(ev.Payload())
		if err != nil {
			return err
		}
		line, err := json.Marshal(outputLine{Output: output, Port: port, Origin: ev.Origin(), ID: ev.ID(), Payload: payload})
		if err != nil {
			return err
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if _, err := l.w.Write(append(line, '\n')); err != nil {
			return err
		}
		l.emitted++
		return nil
	})
}

func (l *lineWriter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.emitted
}
