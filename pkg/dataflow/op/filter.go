package op

import (
	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/expr"
)

// FilterOp forwards events whose payload matches a condition. Events that
// do not match are dropped, or sent to the reject port when one is set.
type FilterOp struct {
	cond   *expr.Condition
	reject string
}

// FilterOption configures a FilterOp.
type FilterOption func(*FilterOp)

// WithReject sends non-matching events to port instead of dropping them.
func WithReject(port string) FilterOption {
	return func(f *FilterOp) {
		f.reject = port
	}
}

// Filter compiles when with the default evaluator.
func Filter(when string, opts ...FilterOption) (*FilterOp, error) {
	cond, err := expr.New().Compile(when)
	if err != nil {
		return nil, err
	}
	return FilterCondition(cond, opts...), nil
}

// FilterCondition returns a filter for an already compiled condition.
func FilterCondition(cond *expr.Condition, opts ...FilterOption) *FilterOp {
	f := &FilterOp{cond: cond}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnEvent implements dataflow.Operator. An evaluation error fails the event.
func (f *FilterOp) OnEvent(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	ok, err := f.cond.Match(expr.ForEvent(ev))
	if err != nil {
		return nil, err
	}
	switch {
	case ok:
		return []dataflow.Output{dataflow.Emit(dataflow.PortOut, ev)}, nil
	case f.reject != "":
		return []dataflow.Output{dataflow.Emit(f.reject, ev)}, nil
	default:
		return nil, nil
	}
}

// InputPorts implements dataflow.PortDeclarer.
func (f *FilterOp) InputPorts() []string { return []string{dataflow.PortIn} }

// OutputPorts implements dataflow.PortDeclarer.
func (f *FilterOp) OutputPorts() []string {
	if f.reject != "" {
		return []string{dataflow.PortOut, f.reject}
	}
	return []string{dataflow.PortOut}
}

// Condition returns the filter's condition.
func (f *FilterOp) Condition() *expr.Condition { return f.cond }
