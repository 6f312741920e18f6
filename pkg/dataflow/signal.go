package dataflow

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// Signal delivers a Signal event into the named inputs, or into every
// input when none are named, and runs the cascade to completion.
//
// Signals travel depth first like data but visit each node at most once
// per call, however many paths lead to it, and only after every reachable
// upstream node has handled the signal. Whatever a drain flushes upstream
// therefore arrives before the downstream node drains. Nodes that do not
// handle signals are passed through. Outputs returned by OnSignal are
// routed exactly like OnEvent outputs.
func (p *Pipeline) Signal(ctx context.Context, ev *event.Event, inputs ...string) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if ev == nil || !ev.IsSignal() {
		return fmt.Errorf("%w: signal requires a signal event", ErrInvalidKind)
	}
	targets, err := p.resolveInputs(inputs)
	if err != nil {
		return err
	}
	if !p.enter() {
		return ErrPipelineClosed
	}
	defer p.inflight.Done()

	return p.broadcast(&cascade{ctx: ctx, stop: p.abandon}, targets, ev)
}

func (p *Pipeline) resolveInputs(ids []string) ([]*node, error) {
	if len(ids) == 0 {
		return p.inputs, nil
	}
	out := make([]*node, 0, len(ids))
	for _, id := range ids {
		n, ok := p.index[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if !n.isInput {
			return nil, fmt.Errorf("%w: %s", ErrNotInput, id)
		}
		out = append(out, n)
	}
	return out, nil
}

// broadcast runs one signal cascade over targets with tracing and metrics.
func (p *Pipeline) broadcast(c *cascade, targets []*node, ev *event.Event) (err error) {
	start := time.Now()
	if p.cfg.tracing {
		var span trace.Span
		c.ctx, span = p.cfg.spans.StartCascadeSpan(c.ctx, p.cfg.pipelineID, "signal", ev.Origin(), ev.ID())
		defer func() {
			p.cfg.spans.EndSpanWithError(span, err)
		}()
	}

	err = p.signalAll(c, targets, ev)
	p.cfg.metrics.RecordCascade(c.ctx, "signal", time.Since(start), err != nil)
	return err
}

// signalWalk tracks one signal cascade: the nodes reachable from where it
// started and how many of their reachable predecessors are still pending.
type signalWalk struct {
	ev      *event.Event
	reach   []bool
	waiting []int
}

// signalAll delivers ev to starts and everything downstream of them.
func (p *Pipeline) signalAll(c *cascade, starts []*node, ev *event.Event) error {
	w := &signalWalk{
		ev:      ev,
		reach:   make([]bool, len(p.nodes)),
		waiting: make([]int, len(p.nodes)),
	}
	stack := slices.Clone(starts)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w.reach[n.idx] {
			continue
		}
		w.reach[n.idx] = true
		stack = append(stack, n.succ...)
	}
	for i, n := range p.nodes {
		if !w.reach[i] {
			continue
		}
		for _, s := range n.succ {
			w.waiting[s.idx]++
		}
	}

	for _, n := range starts {
		if w.waiting[n.idx] != 0 || !w.reach[n.idx] {
			continue
		}
		if err := p.signalVisit(c, n, w); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) signalVisit(c *cascade, n *node, w *signalWalk) error {
	// Unreachable from here on, so a start listed twice is visited once.
	w.reach[n.idx] = false
	if err := p.interrupted(c, n, w.ev); err != nil {
		return err
	}

	if n.hasSignals {
		outs, err := p.call(c, n, "signal", func(ctx Context) ([]Output, error) {
			return n.signals.OnSignal(ctx, w.ev)
		})
		if err != nil {
			if err := p.fail(c, n, "", w.ev, "signal", err); err != nil {
				return err
			}
		} else if err := p.route(c, n, outs); err != nil {
			return err
		}
	}

	for _, s := range n.succ {
		w.waiting[s.idx]--
		if w.waiting[s.idx] == 0 && w.reach[s.idx] {
			if err := p.signalVisit(c, s, w); err != nil {
				return err
			}
		}
	}
	return nil
}
