package op

import (
	"errors"
	"slices"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// Funcs holds the bodies of a script-backed operator. Only Event is
// required. A nil Signal ignores signals and a nil Contraflow leaves the
// node out of contraflow walks entirely.
type Funcs struct {
	Event      func(ctx dataflow.Context, port string, ev *event.Event) ([]dataflow.Output, error)
	Signal     func(ctx dataflow.Context, ev *event.Event) ([]dataflow.Output, error)
	Contraflow func(ctx dataflow.Context, port string, ev *event.Event) *event.Event

	// In and Out declare ports. Empty means the defaults.
	In  []string
	Out []string
}

// Func builds an operator from f. The returned value implements
// dataflow.SignalHandler and dataflow.ContraflowHandler only when the
// matching body is set.
func Func(f Funcs) (dataflow.Operator, error) {
	if f.Event == nil {
		return nil, errors.New("func: Event body is required")
	}
	base := funcOp{f: f}
	switch {
	case f.Signal != nil && f.Contraflow != nil:
		return &funcFull{funcOp: base}, nil
	case f.Signal != nil:
		return &funcSignal{funcOp: base}, nil
	case f.Contraflow != nil:
		return &funcContra{funcOp: base}, nil
	default:
		return &base, nil
	}
}

type funcOp struct {
	f Funcs
}

func (o *funcOp) OnEvent(ctx dataflow.Context, port string, ev *event.Event) ([]dataflow.Output, error) {
	return o.f.Event(ctx, port, ev)
}

func (o *funcOp) InputPorts() []string {
	if len(o.f.In) == 0 {
		return []string{dataflow.PortIn}
	}
	return slices.Clone(o.f.In)
}

func (o *funcOp) OutputPorts() []string {
	if len(o.f.Out) == 0 {
		return []string{dataflow.PortOut}
	}
	return slices.Clone(o.f.Out)
}

type funcSignal struct{ funcOp }

func (o *funcSignal) OnSignal(ctx dataflow.Context, ev *event.Event) ([]dataflow.Output, error) {
	return o.f.Signal(ctx, ev)
}

type funcContra struct{ funcOp }

func (o *funcContra) OnContraflow(ctx dataflow.Context, port string, ev *event.Event) *event.Event {
	return o.f.Contraflow(ctx, port, ev)
}

type funcFull struct{ funcOp }

func (o *funcFull) OnSignal(ctx dataflow.Context, ev *event.Event) ([]dataflow.Output, error) {
	return o.f.Signal(ctx, ev)
}

func (o *funcFull) OnContraflow(ctx dataflow.Context, port string, ev *event.Event) *event.Event {
	return o.f.Contraflow(ctx, port, ev)
}
