package op

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/deploy"
)

var stock = []struct {
	name    string
	factory deploy.Factory
}{
	{"passthrough", newPassthrough},
	{"split", newSplit},
	{"filter", newFilter},
	{"window", newWindow},
	{"backpressure", newBackpressure},
	{"roundrobin", newRoundRobin},
	{"log", newLog},
}

// Register installs the parameter-driven kinds into k.
func Register(k *deploy.Kinds) error {
	for _, kind := range stock {
		if err := k.Register(kind.name, kind.factory); err != nil {
			return err
		}
	}
	return nil
}

// Kinds returns a registry holding the stock kinds.
func Kinds() *deploy.Kinds {
	k := deploy.NewKinds()
	if err := Register(k); err != nil {
		panic(err)
	}
	return k
}

// RegisterFunc makes a Func operator available under name. build is called
// once per node with the node's parameters.
func RegisterFunc(k *deploy.Kinds, name string, build func(id string, cfg config.Config) (Funcs, error)) error {
	return k.Register(name, func(id string, cfg config.Config) (dataflow.Operator, error) {
		f, err := build(id, cfg)
		if err != nil {
			return nil, err
		}
		return Func(f)
	})
}

// RegisterSink makes a sink adapter available under name. The "forward"
// parameter enables WithForward.
func RegisterSink(k *deploy.Kinds, name string, build func(id string, cfg config.Config) (dataflow.Sink, error)) error {
	return k.Register(name, func(id string, cfg config.Config) (dataflow.Operator, error) {
		s, err := build(id, cfg)
		if err != nil {
			return nil, err
		}
		var opts []SinkOption
		if cfg.Bool("forward", false) {
			opts = append(opts, WithForward())
		}
		return Sink(s, opts...)
	})
}

func newPassthrough(string, config.Config) (dataflow.Operator, error) {
	return Passthrough(), nil
}

func newSplit(_ string, cfg config.Config) (dataflow.Operator, error) {
	return Split(cfg.StringSlice("ports", nil)...)
}

func newFilter(_ string, cfg config.Config) (dataflow.Operator, error) {
	when := cfg.String("when", "")
	if when == "" {
		return nil, fmt.Errorf("filter: parameter %q is required", "when")
	}
	var opts []FilterOption
	if reject := cfg.String("reject", ""); reject != "" {
		opts = append(opts, WithReject(reject))
	}
	return Filter(when, opts...)
}

func newWindow(_ string, cfg config.Config) (dataflow.Operator, error) {
	return Window(cfg.Int("size", 0), cfg.Duration("every", 0))
}

func newBackpressure(_ string, cfg config.Config) (dataflow.Operator, error) {
	return Backpressure(cfg.Duration("timeout", 0)), nil
}

func newRoundRobin(_ string, cfg config.Config) (dataflow.Operator, error) {
	return RoundRobin(cfg.StringSlice("ports", nil)...)
}

func newLog(_ string, cfg config.Config) (dataflow.Operator, error) {
	var level slog.Level
	if s := cfg.String("level", ""); s != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
	}
	return Log(level, cfg.String("message", "")), nil
}
