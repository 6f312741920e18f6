package dataflow

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
)

// target is one end of an adjacency entry. For forward edges port is the
// target's input port; for reverse edges it is the upstream node's output port.
type target struct {
	node *node
	port string
}

// node is the runtime slot for one operator. Only the engine touches it.
type node struct {
	id     string
	idx    int
	logger *slog.Logger

	// mu serialises operator calls. It is held only for the duration of a
	// single call, never while the cascade recurses into other nodes.
	mu         sync.Mutex
	op         Operator
	signals    SignalHandler
	contra     ContraflowHandler
	terminator Terminator

	hasSignals bool
	hasContra  bool

	inPorts  []string
	outPorts []string

	out     map[string][]target
	succ    []*node
	pred    []*node
	reverse []target

	isInput  bool
	isOutput bool

	// interest is true when this node or any node upstream of it handles
	// contraflow. reachesInput is true when an input is upstream or here.
	interest     bool
	reachesInput bool
}

// originState serialises cascades for one origin and tracks its last id.
type originState struct {
	mu   sync.Mutex
	last uint64
	seen bool
}

type sinkKey struct {
	node int
	port string
}

type listener struct {
	fn ContraflowListener
}

// Pipeline is a validated, runnable dataflow graph produced by Compile.
//
// A Pipeline is safe for concurrent use. Events from one origin are
// delivered in id order; events from different origins run concurrently
// and meet only at node locks.
type Pipeline struct {
	cfg config

	nodes   []*node
	index   map[string]*node
	edges   []Edge
	inputs  []*node
	outputs []*node
	rev     *ReverseGraph

	sinkMu sync.RWMutex
	sinks  map[sinkKey][]Sink

	listenMu  sync.RWMutex
	listeners map[int][]*listener
	listening atomic.Int32

	origins *registry.Registry[string, *originState]

	lifecycle sync.RWMutex
	closed    bool
	inflight  sync.WaitGroup
	abandon   chan struct{}
}

// PipelineID returns the pipeline id.
func (p *Pipeline) PipelineID() string {
	return p.cfg.pipelineID
}

// NodeIDs returns node ids in declaration order.
func (p *Pipeline) NodeIDs() []string {
	ids := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		ids[i] = n.id
	}
	return ids
}

// HasNode reports whether a node exists.
func (p *Pipeline) HasNode(id string) bool {
	_, ok := p.index[id]
	return ok
}

// Inputs returns the input node ids in declaration order.
func (p *Pipeline) Inputs() []string {
	return names(p.inputs)
}

// Outputs returns the output node ids in declaration order.
func (p *Pipeline) Outputs() []string {
	return names(p.outputs)
}

// Edges returns the forward edges in declaration order.
func (p *Pipeline) Edges() []Edge {
	out := make([]Edge, len(p.edges))
	copy(out, p.edges)
	return out
}

// Successors returns the distinct downstream neighbours of id in edge
// declaration order. Returns nil for unknown nodes.
func (p *Pipeline) Successors(id string) []string {
	n, ok := p.index[id]
	if !ok {
		return nil
	}
	return names(n.succ)
}

// Predecessors returns the distinct upstream neighbours of id in edge
// declaration order. Returns nil for unknown nodes.
func (p *Pipeline) Predecessors(id string) []string {
	n, ok := p.index[id]
	if !ok {
		return nil
	}
	return names(n.pred)
}

// Ports returns the declared input and output ports of a node.
func (p *Pipeline) Ports(id string) (in, out []string, ok bool) {
	n, found := p.index[id]
	if !found {
		return nil, nil, false
	}
	return append([]string(nil), n.inPorts...), append([]string(nil), n.outPorts...), true
}

// HandlesContraflow reports whether the node's operator reacts to contraflow.
func (p *Pipeline) HandlesContraflow(id string) bool {
	n, ok := p.index[id]
	return ok && n.hasContra
}

// Reverse returns the contraflow graph.
func (p *Pipeline) Reverse() *ReverseGraph {
	return p.rev
}

func names(nodes []*node) []string {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

// ReverseGraph is the mirror of a pipeline's forward graph: for every edge
// A/pa -> B/pb it holds B/pb -> A/pa. It is built once at Compile from the
// same validated edge list as the forward graph.
type ReverseGraph struct {
	names []string
	index map[string]int
	edges []Edge
	adj   [][]int
	from  [][]Edge
}

func newReverseGraph(nodeNames []string, forward []Edge) *ReverseGraph {
	r := &ReverseGraph{
		names: nodeNames,
		index: make(map[string]int, len(nodeNames)),
		edges: make([]Edge, 0, len(forward)),
		adj:   make([][]int, len(nodeNames)),
		from:  make([][]Edge, len(nodeNames)),
	}
	for i, id := range nodeNames {
		r.index[id] = i
	}
	for _, e := range forward {
		re := e.Reversed()
		src, dst := r.index[re.From], r.index[re.To]
		r.edges = append(r.edges, re)
		r.from[src] = append(r.from[src], re)
		if !containsInt(r.adj[src], dst) {
			r.adj[src] = append(r.adj[src], dst)
		}
	}
	return r
}

// Edges returns all reverse edges in forward declaration order.
func (r *ReverseGraph) Edges() []Edge {
	out := make([]Edge, len(r.edges))
	copy(out, r.edges)
	return out
}

// EdgesFrom returns the reverse edges leaving id, in the order contraflow
// walks them.
func (r *ReverseGraph) EdgesFrom(id string) []Edge {
	i, ok := r.index[id]
	if !ok {
		return nil
	}
	out := make([]Edge, len(r.from[i]))
	copy(out, r.from[i])
	return out
}

// Predecessors returns the nodes contraflow reaches from id in one step,
// which are the forward sources feeding id.
func (r *ReverseGraph) Predecessors(id string) []string {
	i, ok := r.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.adj[i]))
	for _, j := range r.adj[i] {
		out = append(out, r.names[j])
	}
	return out
}

// IsAcyclic reports whether the reverse graph has no cycle.
func (r *ReverseGraph) IsAcyclic() bool {
	return findCycle(r.names, r.adj) == nil
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
