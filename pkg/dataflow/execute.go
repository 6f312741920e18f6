package dataflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// cascade carries the state shared by every node visit of one cascade.
type cascade struct {
	ctx context.Context
	// stop aborts the cascade at the next node boundary. It is the
	// pipeline's abandon channel for normal cascades and nil for teardown.
	stop <-chan struct{}
}

func (c *cascade) cause() error {
	select {
	case <-c.stop:
		return ErrAbandoned
	default:
	}
	return c.ctx.Err()
}

// Push delivers a Data event into an input node and runs the resulting
// cascade to completion before returning.
//
// The cascade is depth first: each output of an operator is delivered to
// every edge on its port, in the order the edges were declared, before the
// operator's next output is considered. Events sharing an origin are
// processed one at a time in id order; an id lower than the last accepted
// id for its origin is rejected with an *OrderError.
//
// Operator failures do not fail the push. Push returns an error only when
// the event is rejected or the cascade is cancelled (*CancellationError).
//
// Example:
//
//	ev := event.NewData("orders", 1, value.String("hello"))
//	if err := p.Push(ctx, "src", ev); err != nil {
//	    return err
//	}
func (p *Pipeline) Push(ctx context.Context, input string, ev *event.Event) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	n, ok := p.index[input]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, input)
	}
	if !n.isInput {
		return fmt.Errorf("%w: %s", ErrNotInput, input)
	}
	if ev == nil || !ev.IsData() {
		return fmt.Errorf("%w: push requires a data event", ErrInvalidKind)
	}
	if !p.enter() {
		p.cfg.metrics.RecordRejected(ctx, input, "closed")
		return ErrPipelineClosed
	}
	defer p.inflight.Done()

	st := p.origins.GetOrCreate(ev.Origin(), func() *originState { return &originState{} })
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.seen && ev.ID() < st.last {
		p.cfg.metrics.RecordRejected(ctx, input, "out_of_order")
		return &OrderError{Origin: ev.Origin(), Last: st.last, Got: ev.ID()}
	}
	st.last, st.seen = ev.ID(), true

	start := time.Now()
	if p.cfg.tracing {
		var span trace.Span
		ctx, span = p.cfg.spans.StartCascadeSpan(ctx, p.cfg.pipelineID, "data", ev.Origin(), ev.ID())
		defer func() {
			p.cfg.spans.EndSpanWithError(span, err)
		}()
	}

	err = p.deliver(&cascade{ctx: ctx, stop: p.abandon}, n, PortIn, ev)
	p.cfg.metrics.RecordCascade(ctx, "data", time.Since(start), err != nil)
	return err
}

// enter registers an in-flight cascade unless the pipeline is closed.
func (p *Pipeline) enter() bool {
	p.lifecycle.RLock()
	defer p.lifecycle.RUnlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

// interrupted checks for cancellation before a node visit.
func (p *Pipeline) interrupted(c *cascade, n *node, ev *event.Event) error {
	cause := c.cause()
	if cause == nil {
		return nil
	}
	observability.LogCascadeAbandoned(p.cfg.logger, ev.Origin(), ev.ID(), n.id, cause)
	return &CancellationError{NodeID: n.id, Origin: ev.Origin(), ID: ev.ID(), Cause: cause}
}

// deliver runs one Data event through a node and routes its outputs.
func (p *Pipeline) deliver(c *cascade, n *node, port string, ev *event.Event) error {
	if err := p.interrupted(c, n, ev); err != nil {
		return err
	}
	outs, err := p.call(c, n, "data", func(ctx Context) ([]Output, error) {
		return n.op.OnEvent(ctx, port, ev)
	})
	if err != nil {
		return p.fail(c, n, port, ev, "event", err)
	}
	return p.route(c, n, outs)
}

// call invokes an operator method under the node lock with metrics,
// tracing and panic recovery.
func (p *Pipeline) call(c *cascade, n *node, kind string, fn func(Context) ([]Output, error)) ([]Output, error) {
	ctx := c.ctx
	var span trace.Span
	if p.cfg.tracing {
		ctx, span = p.cfg.spans.StartNodeSpan(ctx, n.id, kind)
	}
	start := time.Now()

	outs, err := guard(n, func() ([]Output, error) {
		return fn(p.contextFor(ctx, n))
	})

	p.cfg.metrics.RecordNodeEvent(ctx, n.id, kind, time.Since(start), err)
	if p.cfg.tracing {
		p.cfg.spans.EndSpanWithError(span, err)
	}
	return outs, err
}

// guard runs fn while holding the node lock and converts a panic into a
// *PanicError. It fails with ErrNodeReleased once teardown has released
// the operator.
func guard[T any](n *node, fn func() (T, error)) (res T, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.op == nil {
		return res, ErrNodeReleased
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = zero
			err = &PanicError{
				NodeID: n.id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return fn()
}

func (p *Pipeline) contextFor(ctx context.Context, n *node) Context {
	return &nodeContext{
		Context:    ctx,
		logger:     n.logger,
		pipelineID: p.cfg.pipelineID,
		nodeID:     n.id,
	}
}

// fail handles an operator error. The error is local to the event: it is
// logged and, when the node's err port leads anywhere, an error event is
// emitted there. Only cancellation of the follow-on cascade is returned.
func (p *Pipeline) fail(c *cascade, n *node, port string, ev *event.Event, op string, err error) error {
	var panicErr *PanicError
	if !errors.As(err, &panicErr) && !errors.Is(err, ErrNodeReleased) {
		err = &NodeError{NodeID: n.id, Op: op, Err: err}
	}

	routed := p.hasErrRoute(n)
	observability.LogNodeError(p.cfg.logger, n.id, ev.Origin(), ev.ID(), err, routed)
	if !routed {
		return nil
	}

	payload := value.NewRecord(
		value.F("error", value.String(err.Error())),
		value.F("node", value.String(n.id)),
		value.F("port", value.String(port)),
	)
	var errEv *event.Event
	if ev.IsData() {
		errEv = ev.Derive(payload)
	} else {
		errEv = event.NewData(event.InternalOrigin, ev.ID(), payload)
	}
	return p.forward(c, n, PortErr, errEv)
}

func (p *Pipeline) hasErrRoute(n *node) bool {
	if len(n.out[PortErr]) > 0 {
		return true
	}
	if !n.isOutput {
		return false
	}
	p.sinkMu.RLock()
	defer p.sinkMu.RUnlock()
	return len(p.sinks[sinkKey{node: n.idx, port: PortErr}]) > 0
}

// route dispatches an operator's outputs in order. Data goes downstream on
// the named port, contraflow goes upstream from n and signals start a
// fresh signal cascade below n.
func (p *Pipeline) route(c *cascade, n *node, outs []Output) error {
	for _, o := range outs {
		ev := o.Event
		if ev == nil {
			continue
		}
		switch ev.Kind() {
		case event.KindContraflow:
			p.walkUpstream(c, n, ev)
		case event.KindSignal:
			if err := p.signalAll(c, n.succ, ev); err != nil {
				return err
			}
		default:
			if err := p.forward(c, n, o.Port, ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// forward sends ev out of n on port: to bound sinks for output nodes and
// along each edge in declaration order otherwise. Ports with nothing
// attached drop the event.
func (p *Pipeline) forward(c *cascade, n *node, port string, ev *event.Event) error {
	if n.isOutput {
		p.deliverToSinks(c, n, port, ev)
		return nil
	}
	for _, t := range n.out[port] {
		if err := p.deliver(c, t.node, t.port, ev); err != nil {
			return err
		}
	}
	return nil
}
