package dataflow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	dferrors "github.com/randalmurphal/dataflow/pkg/dataflow/errors"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// Outcome is the result of handing an event to a sink.
type Outcome uint8

// Sink outcomes.
const (
	// Accepted means the sink took the event.
	Accepted Outcome = iota
	// Backpressure means the sink cannot take more right now.
	Backpressure
	// Failed means the sink rejected the event.
	Failed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Backpressure:
		return "backpressure"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Sink receives the events leaving an output node.
//
// Deliver must not block waiting for capacity. A full sink returns
// Backpressure; the engine turns that into a contraflow signal travelling
// upstream so that producers can slow down.
type Sink interface {
	Deliver(ctx context.Context, ev *event.Event) Outcome
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev *event.Event) Outcome

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, ev *event.Event) Outcome {
	return f(ctx, ev)
}

// ErrorSink adapts a function returning an error to the Sink interface.
// See OutcomeOf for how errors map to outcomes.
func ErrorSink(fn func(ctx context.Context, ev *event.Event) error) Sink {
	return SinkFunc(func(ctx context.Context, ev *event.Event) Outcome {
		return OutcomeOf(fn(ctx, ev))
	})
}

// OutcomeOf maps a delivery error to an Outcome: nil is Accepted,
// transient errors are Backpressure and everything else is Failed.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Accepted
	case dferrors.IsRetryable(err):
		return Backpressure
	default:
		return Failed
	}
}

// Connect binds a sink to the out port of an output node.
func (p *Pipeline) Connect(output string, s Sink) error {
	return p.ConnectPort(output, PortOut, s)
}

// ConnectPort binds a sink to a port of an output node. Several sinks may
// share a port; they receive each event in the order they were bound.
func (p *Pipeline) ConnectPort(output, port string, s Sink) error {
	if s == nil {
		return errors.New("dataflow: sink cannot be nil")
	}
	n, ok := p.index[output]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, output)
	}
	if !n.isOutput {
		return fmt.Errorf("%w: %s", ErrNotOutput, output)
	}
	if port != PortErr && !slices.Contains(n.outPorts, port) {
		return fmt.Errorf("%w: %s has no output port %q", ErrInvalidPort, output, port)
	}

	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()
	if p.closed {
		return ErrPipelineClosed
	}

	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	key := sinkKey{node: n.idx, port: port}
	bound := make([]Sink, 0, len(p.sinks[key])+1)
	bound = append(bound, p.sinks[key]...)
	p.sinks[key] = append(bound, s)
	return nil
}

// deliverToSinks hands ev to every sink bound on n/port and turns
// non-accepted outcomes, and accepted transactional events, into
// contraflow starting at n.
func (p *Pipeline) deliverToSinks(c *cascade, n *node, port string, ev *event.Event) {
	p.sinkMu.RLock()
	sinks := p.sinks[sinkKey{node: n.idx, port: port}]
	p.sinkMu.RUnlock()

	for _, s := range sinks {
		outcome := p.safeDeliver(c.ctx, n, s, ev)
		p.cfg.metrics.RecordSinkOutcome(c.ctx, n.id, outcome.String())

		cf := OutcomeContraflow(n.id, ev, outcome)
		if cf == nil {
			continue
		}
		if outcome != Accepted {
			observability.LogSinkOutcome(p.cfg.logger, n.id, outcome.String(), ev.ID())
		}
		p.dispatchAt(c, n, port, cf)
	}
}

// safeDeliver calls a sink, treating a panic as Failed.
func (p *Pipeline) safeDeliver(ctx context.Context, n *node, s Sink, ev *event.Event) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			observability.LogNodeError(p.cfg.logger, n.id, ev.Origin(), ev.ID(),
				fmt.Errorf("sink panicked: %v", r), false)
			outcome = Failed
		}
	}()
	return s.Deliver(ctx, ev)
}

// OutcomeContraflow builds the contraflow reporting outcome o for ev,
// attributed to nodeID, or nil when there is nothing to report: an
// Accepted event that is not transactional needs no ack.
func OutcomeContraflow(nodeID string, ev *event.Event, o Outcome) *event.Event {
	var action event.Action
	switch o {
	case Backpressure:
		action = event.ActionBackpressure
	case Failed:
		action = event.ActionFail
	default:
		if !ev.Transactional() {
			return nil
		}
		action = event.ActionAck
	}
	return event.NewContraflow(action, nodeID, ev.ID(),
		event.WithCause(ev.Origin(), ev.ID()),
		event.WithTransactional(ev.Transactional()),
	)
}
