package dataflow

import (
	"fmt"
	"strings"
	"sync"
)

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	From     string
	FromPort string
	To       string
	ToPort   string
}

// String formats the edge as "from/port -> to/port".
func (e Edge) String() string {
	return fmt.Sprintf("%s/%s -> %s/%s", e.From, e.FromPort, e.To, e.ToPort)
}

// Reversed returns the mirrored edge, pointing from the target back to the source.
func (e Edge) Reversed() Edge {
	return Edge{From: e.To, FromPort: e.ToPort, To: e.From, ToPort: e.FromPort}
}

// Graph is a mutable builder for pipelines.
// Add nodes and edges, mark inputs and outputs, then call Compile to
// validate the graph and obtain a runnable Pipeline.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph.
//
// Example:
//
//	split, err := op.Split("a", "b")
//	if err != nil {
//	    return err
//	}
//	g := dataflow.NewGraph().
//	    AddNode("src", op.Passthrough()).
//	    AddNode("split", split).
//	    AddNode("a", op.Passthrough()).
//	    AddNode("b", op.Passthrough()).
//	    Connect("src", "split").
//	    AddEdge("split", "a", "a", dataflow.PortIn).
//	    AddEdge("split", "b", "b", dataflow.PortIn).
//	    AddInput("src").
//	    AddOutput("a").
//	    AddOutput("b")
//
//	p, err := g.Compile()
type Graph struct {
	mu      sync.Mutex
	nodes   map[string]Operator
	order   []string
	edges   []Edge
	inputs  []string
	outputs []string
}

// NewGraph creates an empty graph builder.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]Operator),
	}
}

// ValidateNodeID reports whether id can name a node. Ids must be non-empty
// and contain neither whitespace nor '/', which separates node and port.
func ValidateNodeID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidNodeID)
	case strings.ContainsAny(id, " \t\n\r"):
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeID, id)
	case strings.Contains(id, "/"):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidNodeID, id)
	}
	return nil
}

// AddNode adds a named operator. Returns the graph for method chaining.
//
// Panics if:
//   - id is empty, contains whitespace or contains '/'
//   - op is nil
//   - id already exists in the graph
func (g *Graph) AddNode(id string, op Operator) *Graph {
	if err := ValidateNodeID(id); err != nil {
		panic("dataflow: " + err.Error())
	}
	if op == nil {
		panic("dataflow: operator cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("dataflow: duplicate node ID: %s", id))
	}
	g.nodes[id] = op
	g.order = append(g.order, id)
	return g
}

// AddEdge connects from/fromPort to to/toPort. Edges leaving the same port
// are visited in the order they are added. Validation happens at Compile.
func (g *Graph) AddEdge(from, fromPort, to, toPort string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges = append(g.edges, Edge{From: from, FromPort: fromPort, To: to, ToPort: toPort})
	return g
}

// Connect adds an edge from the out port of from to the in port of to.
func (g *Graph) Connect(from, to string) *Graph {
	return g.AddEdge(from, PortOut, to, PortIn)
}

// AddInput marks a node as a pipeline input. Data is pushed into inputs.
func (g *Graph) AddInput(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inputs = appendUnique(g.inputs, id)
	return g
}

// AddOutput marks a node as a pipeline output. Outputs deliver to sinks.
func (g *Graph) AddOutput(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.outputs = appendUnique(g.outputs, id)
	return g
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
