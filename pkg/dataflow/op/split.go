package op

import (
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// SplitOp copies each event to all of its ports in order.
type SplitOp struct {
	ports []string
}

// Split returns an operator emitting every event on each of ports, in the
// order given.
func Split(ports ...string) (*SplitOp, error) {
	if len(ports) == 0 {
		return nil, errors.New("split: at least one port is required")
	}
	for i, p := range ports {
		if p == "" || p == dataflow.PortErr {
			return nil, fmt.Errorf("split: invalid port %q", p)
		}
		if slices.Contains(ports[:i], p) {
			return nil, fmt.Errorf("split: duplicate port %q", p)
		}
	}
	return &SplitOp{ports: slices.Clone(ports)}, nil
}

// OnEvent implements dataflow.Operator.
func (s *SplitOp) OnEvent(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	outs := make([]dataflow.Output, len(s.ports))
	for i, p := range s.ports {
		outs[i] = dataflow.Emit(p, ev)
	}
	return outs, nil
}

// InputPorts implements dataflow.PortDeclarer.
func (s *SplitOp) InputPorts() []string { return []string{dataflow.PortIn} }

// OutputPorts implements dataflow.PortDeclarer.
func (s *SplitOp) OutputPorts() []string { return slices.Clone(s.ports) }
