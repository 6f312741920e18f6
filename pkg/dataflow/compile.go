package dataflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/dataflow/pkg/dataflow/observability"
	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
)

// Compile validates the graph and creates a runnable Pipeline.
// Returns an error if validation fails. All problems found are joined
// together; each is a *ConstructionError or a *CycleError.
//
// Validation checks:
//  1. At least one input, and inputs and outputs name existing nodes
//  2. Edges reference existing nodes and ports the nodes declare
//  3. No edge is declared twice
//  4. Inputs have no incoming edges, outputs have no outgoing edges
//  5. The graph has no cycle
//
// Nodes unreachable from every input are logged as warnings but do not
// cause compilation to fail.
func (g *Graph) Compile(opts ...Option) (*Pipeline, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.finish()

	var errs []error

	// 1. Inputs and outputs
	if len(g.inputs) == 0 {
		errs = append(errs, &ConstructionError{Err: ErrNoInputs})
	}
	for _, id := range g.inputs {
		if _, ok := g.nodes[id]; !ok {
			errs = append(errs, &ConstructionError{Node: id, Err: fmt.Errorf("%w: declared as input", ErrNodeNotFound)})
		}
	}
	for _, id := range g.outputs {
		if _, ok := g.nodes[id]; !ok {
			errs = append(errs, &ConstructionError{Node: id, Err: fmt.Errorf("%w: declared as output", ErrNodeNotFound)})
		}
	}

	// 2-4. Edges
	valid := make([]Edge, 0, len(g.edges))
	seen := make(map[Edge]bool, len(g.edges))
	for _, e := range g.edges {
		if edgeErrs := g.checkEdge(e, seen); len(edgeErrs) > 0 {
			errs = append(errs, edgeErrs...)
			continue
		}
		seen[e] = true
		valid = append(valid, e)
	}

	// 5. Cycles, over every edge between existing nodes so that a cycle
	// is reported even when one of its edges failed another check.
	index := make(map[string]int, len(g.order))
	for i, id := range g.order {
		index[id] = i
	}
	adj := make([][]int, len(g.order))
	for _, e := range g.edges {
		from, fromOK := index[e.From]
		to, toOK := index[e.To]
		if fromOK && toOK && !containsInt(adj[from], to) {
			adj[from] = append(adj[from], to)
		}
	}
	if path := findCycle(g.order, adj); path != nil {
		errs = append(errs, &CycleError{Path: path})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	p := g.build(cfg, valid)
	p.warnUnreachable()
	observability.LogPipelineCompiled(cfg.logger, cfg.pipelineID, len(p.nodes), len(p.edges))
	return p, nil
}

// checkEdge validates one edge against the declared nodes and the edges
// accepted so far.
func (g *Graph) checkEdge(e Edge, seen map[Edge]bool) []error {
	var errs []error
	edgeErr := func(err error) {
		edge := e
		errs = append(errs, &ConstructionError{Edge: &edge, Err: err})
	}

	fromOp, fromOK := g.nodes[e.From]
	toOp, toOK := g.nodes[e.To]
	if !fromOK {
		edgeErr(fmt.Errorf("%w: source %s", ErrNodeNotFound, e.From))
	}
	if !toOK {
		edgeErr(fmt.Errorf("%w: target %s", ErrNodeNotFound, e.To))
	}
	if fromOK && e.FromPort != PortErr && !slices.Contains(outputPorts(fromOp), e.FromPort) {
		edgeErr(fmt.Errorf("%w: %s has no output port %q", ErrInvalidPort, e.From, e.FromPort))
	}
	if toOK && !slices.Contains(inputPorts(toOp), e.ToPort) {
		edgeErr(fmt.Errorf("%w: %s has no input port %q", ErrInvalidPort, e.To, e.ToPort))
	}
	if slices.Contains(g.inputs, e.To) {
		edgeErr(fmt.Errorf("%w: %s", ErrInputHasIncoming, e.To))
	}
	if slices.Contains(g.outputs, e.From) {
		edgeErr(fmt.Errorf("%w: %s", ErrOutputHasOutgoing, e.From))
	}
	if len(errs) == 0 && seen[e] {
		edgeErr(ErrDuplicateEdge)
	}
	return errs
}

// findCycle runs a three-colour depth first search and returns the first
// cycle found as a path whose last element repeats the first, or nil.
func findCycle(nodeNames []string, adj [][]int) []string {
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, len(nodeNames))
	var stack []int
	var cycle []string

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = grey
		stack = append(stack, u)
		for _, v := range adj[u] {
			switch color[v] {
			case grey:
				start := slices.Index(stack, v)
				for _, s := range stack[start:] {
					cycle = append(cycle, nodeNames[s])
				}
				cycle = append(cycle, nodeNames[v])
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for u := range nodeNames {
		if color[u] == white && visit(u) {
			return cycle
		}
	}
	return nil
}

// build creates the Pipeline from validated edges.
func (g *Graph) build(cfg config, edges []Edge) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		nodes:     make([]*node, len(g.order)),
		index:     make(map[string]*node, len(g.order)),
		edges:     edges,
		sinks:     make(map[sinkKey][]Sink),
		listeners: make(map[int][]*listener),
		origins:   registry.New[string, *originState](),
		abandon:   make(chan struct{}),
	}

	for i, id := range g.order {
		op := g.nodes[id]
		n := &node{
			id:       id,
			idx:      i,
			logger:   observability.EnrichLogger(cfg.logger, cfg.pipelineID, id),
			op:       op,
			inPorts:  inputPorts(op),
			outPorts: outputPorts(op),
			out:      make(map[string][]target),
		}
		n.signals, n.hasSignals = op.(SignalHandler)
		n.contra, n.hasContra = op.(ContraflowHandler)
		n.terminator, _ = op.(Terminator)
		p.nodes[i] = n
		p.index[id] = n
	}
	for _, id := range g.inputs {
		n := p.index[id]
		n.isInput = true
		p.inputs = append(p.inputs, n)
	}
	for _, id := range g.outputs {
		n := p.index[id]
		n.isOutput = true
		p.outputs = append(p.outputs, n)
	}

	for _, e := range edges {
		from, to := p.index[e.From], p.index[e.To]
		from.out[e.FromPort] = append(from.out[e.FromPort], target{node: to, port: e.ToPort})
		if !slices.Contains(from.succ, to) {
			from.succ = append(from.succ, to)
		}
		if !slices.Contains(to.pred, from) {
			to.pred = append(to.pred, from)
		}
		to.reverse = append(to.reverse, target{node: from, port: e.FromPort})
	}

	p.rev = newReverseGraph(g.order, edges)
	p.computeInterest()
	return p
}

// computeInterest marks, for every node, whether a contraflow walk that
// reaches it could still invoke a handler or a listener further upstream.
func (p *Pipeline) computeInterest() {
	done := make([]bool, len(p.nodes))
	var visit func(n *node)
	visit = func(n *node) {
		if done[n.idx] {
			return
		}
		done[n.idx] = true
		n.interest = n.hasContra
		n.reachesInput = n.isInput
		for _, up := range n.pred {
			visit(up)
			n.interest = n.interest || up.interest
			n.reachesInput = n.reachesInput || up.reachesInput
		}
	}
	for _, n := range p.nodes {
		visit(n)
	}
}

// warnUnreachable logs nodes that no input can reach.
func (p *Pipeline) warnUnreachable() {
	reached := make([]bool, len(p.nodes))
	queue := append([]*node(nil), p.inputs...)
	for _, n := range queue {
		reached[n.idx] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range n.succ {
			if !reached[s.idx] {
				reached[s.idx] = true
				queue = append(queue, s)
			}
		}
	}
	for _, n := range p.nodes {
		if !reached[n.idx] {
			observability.LogUnreachable(p.cfg.logger, n.id)
		}
	}
}
