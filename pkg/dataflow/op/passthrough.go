package op

import (
	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

type passthrough struct{}

// Passthrough returns an operator that forwards every event on out.
func Passthrough() dataflow.Operator {
	return passthrough{}
}

func (passthrough) OnEvent(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	return []dataflow.Output{dataflow.Emit(dataflow.PortOut, ev)}, nil
}
