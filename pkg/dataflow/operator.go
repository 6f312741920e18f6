package dataflow

import (
	"context"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// Default port names.
const (
	// PortIn is the input port used by Connect and Push.
	PortIn = "in"
	// PortOut is the default output port.
	PortOut = "out"
	// PortErr receives error events derived from operator failures.
	// Every node may use it; it need not be declared.
	PortErr = "err"
)

// Output is one event emitted by an operator on a named output port.
type Output struct {
	Port  string
	Event *event.Event
}

// Emit is shorthand for an Output.
func Emit(port string, ev *event.Event) Output {
	return Output{Port: port, Event: ev}
}

// Operator is the unit of computation in a pipeline.
//
// OnEvent receives a Data event on one of the node's input ports and returns
// zero or more outputs in order. Returning an error drops the outputs; the
// engine logs the failure and, when the node's err port is wired, emits an
// error event there. Outputs whose event is a Contraflow event travel
// upstream from this node instead of downstream.
//
// The engine never calls one operator concurrently with itself, so
// operators may keep unsynchronised state.
type Operator interface {
	OnEvent(ctx Context, port string, ev *event.Event) ([]Output, error)
}

// SignalHandler is implemented by operators that react to Signal events.
// Operators without it ignore signals; the signal still reaches the nodes
// downstream of them.
type SignalHandler interface {
	OnSignal(ctx Context, ev *event.Event) ([]Output, error)
}

// ContraflowHandler is implemented by operators that react to feedback
// from downstream. port is the node's own output port the signal came back
// through, or "" when the signal was injected at this node.
//
// Returning nil stops the signal on this path. Returning an event (the same
// or a modified one) passes it further upstream. Operators without this
// interface are never invoked during contraflow.
type ContraflowHandler interface {
	OnContraflow(ctx Context, port string, ev *event.Event) *event.Event
}

// PortDeclarer is implemented by operators with ports other than the
// default in and out. Compile rejects edges that use undeclared ports.
type PortDeclarer interface {
	InputPorts() []string
	OutputPorts() []string
}

// Terminator is implemented by operators holding resources that must be
// released when the pipeline closes.
type Terminator interface {
	Terminate(ctx context.Context) error
}

// OperatorFunc adapts a function to the Operator interface.
type OperatorFunc func(ctx Context, port string, ev *event.Event) ([]Output, error)

// OnEvent implements Operator.
func (f OperatorFunc) OnEvent(ctx Context, port string, ev *event.Event) ([]Output, error) {
	return f(ctx, port, ev)
}

func inputPorts(op Operator) []string {
	if d, ok := op.(PortDeclarer); ok {
		return d.InputPorts()
	}
	return []string{PortIn}
}

func outputPorts(op Operator) []string {
	if d, ok := op.(PortDeclarer); ok {
		return d.OutputPorts()
	}
	return []string{PortOut}
}
