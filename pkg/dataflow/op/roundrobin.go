package op

import (
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
)

// RoundRobinOp rotates events over its ports. Ports that report
// backpressure are skipped until restored. Backpressure is absorbed while
// some port is still open; the contraflow that blocks the last open port
// travels upstream, and so does the restore that reopens one.
type RoundRobinOp struct {
	ports   []string
	next    int
	blocked map[string]bool
}

// RoundRobin returns a rotating operator over ports.
func RoundRobin(ports ...string) (*RoundRobinOp, error) {
	if len(ports) == 0 {
		return nil, errors.New("roundrobin: at least one port is required")
	}
	for i, p := range ports {
		if p == "" || p == dataflow.PortErr {
			return nil, fmt.Errorf("roundrobin: invalid port %q", p)
		}
		if slices.Contains(ports[:i], p) {
			return nil, fmt.Errorf("roundrobin: duplicate port %q", p)
		}
	}
	return &RoundRobinOp{ports: slices.Clone(ports), blocked: make(map[string]bool)}, nil
}

// OnEvent implements dataflow.Operator. When every port is blocked the
// rotation continues regardless, so events are never dropped here.
func (r *RoundRobinOp) OnEvent(_ dataflow.Context, _ string, ev *event.Event) ([]dataflow.Output, error) {
	idx := r.next % len(r.ports)
	for i := range r.ports {
		candidate := (r.next + i) % len(r.ports)
		if !r.blocked[r.ports[candidate]] {
			idx = candidate
			break
		}
	}
	r.next = idx + 1
	return []dataflow.Output{dataflow.Emit(r.ports[idx], ev)}, nil
}

// OnContraflow implements dataflow.ContraflowHandler.
func (r *RoundRobinOp) OnContraflow(_ dataflow.Context, port string, ev *event.Event) *event.Event {
	known := slices.Contains(r.ports, port)
	switch ev.Action() {
	case event.ActionBackpressure:
		if !known {
			return ev
		}
		wasBlocked := r.allBlocked()
		r.blocked[port] = true
		if r.allBlocked() && !wasBlocked {
			return ev
		}
		return nil
	case event.ActionRestore:
		if !known {
			clear(r.blocked)
			return ev
		}
		wasBlocked := r.allBlocked()
		delete(r.blocked, port)
		if wasBlocked {
			return ev
		}
		return nil
	default:
		return ev
	}
}

// Blocked returns the blocked ports in port order.
func (r *RoundRobinOp) Blocked() []string {
	var out []string
	for _, p := range r.ports {
		if r.blocked[p] {
			out = append(out, p)
		}
	}
	return out
}

func (r *RoundRobinOp) allBlocked() bool {
	return len(r.blocked) == len(r.ports)
}

// InputPorts implements dataflow.PortDeclarer.
func (r *RoundRobinOp) InputPorts() []string { return []string{dataflow.PortIn} }

// OutputPorts implements dataflow.PortDeclarer.
func (r *RoundRobinOp) OutputPorts() []string { return slices.Clone(r.ports) }
