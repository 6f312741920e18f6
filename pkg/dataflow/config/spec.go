package config

import (
	"errors"
	"fmt"
	"strings"
)

// Default port names used when an endpoint omits one.
const (
	DefaultOutPort = "out"
	DefaultInPort  = "in"
)

// ErrInvalidSpec is wrapped by every structural error in a PipelineSpec.
var ErrInvalidSpec = errors.New("invalid pipeline spec")

// PipelineSpec is the declarative description of a pipeline. Nodes,
// links, inputs and outputs keep file order, which becomes edge
// declaration order in the compiled graph.
type PipelineSpec struct {
	Name    string     `yaml:"name" json:"name"`
	Inputs  []string   `yaml:"inputs" json:"inputs"`
	Outputs []string   `yaml:"outputs" json:"outputs"`
	Nodes   []NodeSpec `yaml:"nodes" json:"nodes"`
	Links   []LinkSpec `yaml:"links" json:"links"`
}

// NodeSpec declares one node: its id, operator kind and the parameters
// passed to the kind's factory.
type NodeSpec struct {
	ID     string         `yaml:"id" json:"id"`
	Kind   string         `yaml:"kind" json:"kind"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Params returns the node's parameters as a Config.
func (n NodeSpec) Params() Config {
	return New(n.Config)
}

// LinkSpec connects two endpoints written as "node" or "node/port".
type LinkSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Endpoint is a resolved link end.
type Endpoint struct {
	Node string
	Port string
}

func (e Endpoint) String() string {
	return e.Node + "/" + e.Port
}

// ParseEndpoint splits "node/port" and applies defaultPort when the port
// is omitted.
func ParseEndpoint(s, defaultPort string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	node, port, found := strings.Cut(s, "/")
	if node == "" {
		return Endpoint{}, fmt.Errorf("%w: endpoint %q has no node", ErrInvalidSpec, s)
	}
	if !found {
		return Endpoint{Node: node, Port: defaultPort}, nil
	}
	if port == "" || strings.Contains(port, "/") {
		return Endpoint{}, fmt.Errorf("%w: endpoint %q has an invalid port", ErrInvalidSpec, s)
	}
	return Endpoint{Node: node, Port: port}, nil
}

// Endpoints resolves both ends of the link.
func (l LinkSpec) Endpoints() (from, to Endpoint, err error) {
	from, err = ParseEndpoint(l.From, DefaultOutPort)
	if err != nil {
		return Endpoint{}, Endpoint{}, err
	}
	to, err = ParseEndpoint(l.To, DefaultInPort)
	if err != nil {
		return Endpoint{}, Endpoint{}, err
	}
	return from, to, nil
}

// Validate checks the parts of the spec that do not need operator kinds:
// node ids are unique and have a kind, and links parse. Graph-level rules
// (ports, cycles, input/output placement) are checked when the pipeline
// is compiled. All problems are reported together.
func (s *PipelineSpec) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		switch {
		case n.ID == "":
			errs = append(errs, fmt.Errorf("%w: node %d has no id", ErrInvalidSpec, i))
		case seen[n.ID]:
			errs = append(errs, fmt.Errorf("%w: duplicate node %q", ErrInvalidSpec, n.ID))
		}
		seen[n.ID] = true
		if n.Kind == "" {
			errs = append(errs, fmt.Errorf("%w: node %q has no kind", ErrInvalidSpec, n.ID))
		}
	}
	for i, l := range s.Links {
		if _, _, err := l.Endpoints(); err != nil {
			errs = append(errs, fmt.Errorf("link %d: %w", i, err))
		}
	}
	if len(s.Inputs) == 0 {
		errs = append(errs, fmt.Errorf("%w: no inputs declared", ErrInvalidSpec))
	}
	return errors.Join(errs...)
}

// Node returns the node with the given id.
func (s *PipelineSpec) Node(id string) (NodeSpec, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}
