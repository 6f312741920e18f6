package dataflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
)

// ContraflowListener observes contraflow that reaches an input node.
// Sources use it to learn about acknowledgements, failures and
// backpressure for the events they pushed.
//
// Listeners run synchronously inside the contraflow walk, which may itself
// run inside a Push. They must not call Push for the same origin.
type ContraflowListener func(ctx context.Context, input string, ev *event.Event)

// Contraflow injects a Contraflow event at a node. The node's own handler
// runs first, then the event walks the reverse graph towards the inputs.
//
// At every reverse edge the upstream node is invoked only when it handles
// contraflow, and a handler returning nil ends that path. Nodes without a
// handler pass the event through unchanged, and whole upstream subtrees in
// which nothing handles or listens are skipped.
func (p *Pipeline) Contraflow(ctx context.Context, nodeID string, ev *event.Event) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	n, ok := p.index[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if ev == nil || !ev.IsContraflow() {
		return fmt.Errorf("%w: contraflow requires a contraflow event", ErrInvalidKind)
	}
	if !p.enter() {
		return ErrPipelineClosed
	}
	defer p.inflight.Done()

	start := time.Now()
	if p.cfg.tracing {
		var span trace.Span
		ctx, span = p.cfg.spans.StartCascadeSpan(ctx, p.cfg.pipelineID, "contraflow", ev.Origin(), ev.Cursor())
		defer func() {
			p.cfg.spans.EndSpanWithError(span, err)
		}()
	}

	c := &cascade{ctx: ctx, stop: p.abandon}
	p.dispatchAt(c, n, "", ev)
	p.cfg.metrics.RecordCascade(ctx, "contraflow", time.Since(start), c.cause() != nil)
	return nil
}

// Subscribe registers fn for contraflow reaching the named input.
// The returned function removes the subscription.
func (p *Pipeline) Subscribe(input string, fn ContraflowListener) (func(), error) {
	if fn == nil {
		return nil, errors.New("dataflow: listener cannot be nil")
	}
	n, ok := p.index[input]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, input)
	}
	if !n.isInput {
		return nil, fmt.Errorf("%w: %s", ErrNotInput, input)
	}

	l := &listener{fn: fn}
	p.listenMu.Lock()
	list := make([]*listener, 0, len(p.listeners[n.idx])+1)
	list = append(list, p.listeners[n.idx]...)
	p.listeners[n.idx] = append(list, l)
	p.listening.Add(1)
	p.listenMu.Unlock()

	return func() {
		p.listenMu.Lock()
		defer p.listenMu.Unlock()
		list := p.listeners[n.idx]
		for i, existing := range list {
			if existing == l {
				next := make([]*listener, 0, len(list)-1)
				next = append(next, list[:i]...)
				p.listeners[n.idx] = append(next, list[i+1:]...)
				p.listening.Add(-1)
				return
			}
		}
	}, nil
}

// dispatchAt runs n's own handler and then walks upstream from n.
func (p *Pipeline) dispatchAt(c *cascade, n *node, port string, ev *event.Event) {
	next, ok := p.visitContra(c, n, port, ev)
	if !ok {
		return
	}
	p.walkUpstream(c, n, next)
}

// walkUpstream follows n's reverse edges in declaration order. Each path
// is independent: a node shared by two paths sees the event once per path.
func (p *Pipeline) walkUpstream(c *cascade, n *node, ev *event.Event) {
	for _, r := range n.reverse {
		up := r.node
		if !p.interested(up) {
			if p.cfg.tracing {
				p.cfg.spans.AddSpanEvent(c.ctx, "contraflow.pruned", attribute.String("node.id", up.id))
			}
			continue
		}
		if c.cause() != nil {
			return
		}
		next, ok := p.visitContra(c, up, r.port, ev)
		if !ok {
			continue
		}
		p.walkUpstream(c, up, next)
	}
}

// interested reports whether walking into n can have any effect.
func (p *Pipeline) interested(n *node) bool {
	return n.interest || (n.reachesInput && p.listening.Load() > 0)
}

// visitContra invokes n's handler if it has one and notifies input
// listeners. It reports false when the path ends here.
func (p *Pipeline) visitContra(c *cascade, n *node, port string, ev *event.Event) (*event.Event, bool) {
	if n.hasContra {
		ctx := c.ctx
		var span trace.Span
		if p.cfg.tracing {
			ctx, span = p.cfg.spans.StartNodeSpan(ctx, n.id, "contraflow")
		}
		out, err := guard(n, func() (*event.Event, error) {
			return n.contra.OnContraflow(p.contextFor(ctx, n), port, ev), nil
		})
		if p.cfg.tracing {
			p.cfg.spans.EndSpanWithError(span, err)
		}
		p.cfg.metrics.RecordContraflow(ctx, n.id, ev.Action().String())
		observability.LogContraflow(p.cfg.logger, n.id, ev.Action().String(), ev.Cursor())

		if err != nil {
			observability.LogNodeError(p.cfg.logger, n.id, ev.Origin(), ev.Cursor(), err, false)
			return nil, false
		}
		if out == nil {
			return nil, false
		}
		if !out.IsContraflow() {
			observability.LogNodeError(p.cfg.logger, n.id, ev.Origin(), ev.Cursor(),
				fmt.Errorf("%w: contraflow handler returned %s", ErrInvalidKind, out.Kind()), false)
			return nil, false
		}
		ev = out
	}
	if n.isInput {
		p.notify(c.ctx, n, ev)
	}
	return ev, true
}

func (p *Pipeline) notify(ctx context.Context, n *node, ev *event.Event) {
	if p.listening.Load() == 0 {
		return
	}
	p.listenMu.RLock()
	list := p.listeners[n.idx]
	p.listenMu.RUnlock()

	for _, l := range list {
		l.fn(ctx, n.id, ev)
	}
}
