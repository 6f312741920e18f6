/*
Package dataflow runs events through a directed acyclic graph of operators.

# Overview

A pipeline is a static graph of named nodes. Each node wraps an Operator
and exposes named input and output ports. Data events enter at input nodes,
cascade depth first through the graph and leave through sinks bound to
output nodes. Feedback from downstream (acknowledgements, failures,
backpressure) travels the other way, along a mirrored reverse graph, as
contraflow.

# Basic Usage

	upper := dataflow.OperatorFunc(func(ctx dataflow.Context, port string, ev *event.Event) ([]dataflow.Output, error) {
	    s, _ := value.AsString(ev.Payload())
	    return []dataflow.Output{dataflow.Emit(dataflow.PortOut, ev.WithPayload(value.String(strings.ToUpper(s))))}, nil
	})

	p, err := dataflow.NewGraph().
	    AddNode("src", op.Passthrough()).
	    AddNode("upper", upper).
	    Connect("src", "upper").
	    AddInput("src").
	    AddOutput("upper").
	    Compile()
	if err != nil {
	    log.Fatal(err)
	}
	defer p.Close(context.Background())

	_ = p.Connect("upper", dataflow.SinkFunc(func(ctx context.Context, ev *event.Event) dataflow.Outcome {
	    fmt.Println(ev.Payload())
	    return dataflow.Accepted
	}))

	err = p.Push(ctx, "src", event.NewData("orders", 1, value.String("hello")))

# Ordering

Events of one origin are processed one at a time in id order. Events of
different origins run concurrently; they meet only at node locks, which are
held while a single operator call runs. Within a cascade, every output of an
operator is delivered to each edge on its port, in edge declaration order,
before the next output is considered.

# Errors

Construction problems are reported all at once by Compile as joined
*ConstructionError and *CycleError values. At runtime an operator error
affects only the event being processed: it is logged and, when the node's
err port is wired, an error event with payload {error, node, port} is
emitted there.

# Contraflow

Sinks answer Accepted, Backpressure or Failed. Backpressure and Failed, and
Accepted for transactional events, become contraflow events that start at
the output node and walk the reverse graph. Only nodes implementing
ContraflowHandler are invoked; a handler returning nil ends that path.
Subtrees with no handler and no listener are skipped. Sources learn about
contraflow reaching their input through Subscribe.

# Signals

Signal delivers tick, drain, shutdown or custom signals into the inputs.
Each node sees a signal at most once per call. Close delivers drain, waits
for in-flight work, delivers shutdown and terminates every operator.
*/
package dataflow
