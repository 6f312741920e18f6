package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
)

// Build turns a declarative spec into a compiled pipeline.
//
// Every node's operator is built by the factory registered for its kind,
// links become edges in file order, and the graph is compiled with opts.
// The spec name is used as the pipeline id unless opts set one. All
// problems are reported together. When Build fails, operators already
// built are terminated and no pipeline exists.
func Build(spec *config.PipelineSpec, kinds *Kinds, opts ...dataflow.Option) (*dataflow.Pipeline, error) {
	if spec == nil {
		return nil, errors.New("deploy: spec cannot be nil")
	}
	if kinds == nil {
		return nil, errors.New("deploy: kinds cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var errs []error
	ops := make([]dataflow.Operator, 0, len(spec.Nodes))
	ids := make([]string, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if err := dataflow.ValidateNodeID(n.ID); err != nil {
			errs = append(errs, &dataflow.ConstructionError{Node: n.ID, Err: err})
			continue
		}
		op, err := kinds.New(n.Kind, n.ID, n.Params())
		if err != nil {
			errs = append(errs, &dataflow.ConstructionError{Node: n.ID, Err: err})
			continue
		}
		ops = append(ops, op)
		ids = append(ids, n.ID)
	}

	type link struct{ from, to config.Endpoint }
	links := make([]link, 0, len(spec.Links))
	for _, l := range spec.Links {
		from, to, err := l.Endpoints()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		links = append(links, link{from: from, to: to})
	}

	if len(errs) > 0 {
		terminate(ops)
		return nil, errors.Join(errs...)
	}

	g := dataflow.NewGraph()
	for i, op := range ops {
		g.AddNode(ids[i], op)
	}
	for _, l := range links {
		g.AddEdge(l.from.Node, l.from.Port, l.to.Node, l.to.Port)
	}
	for _, id := range spec.Inputs {
		g.AddInput(id)
	}
	for _, id := range spec.Outputs {
		g.AddOutput(id)
	}

	if spec.Name != "" {
		opts = append([]dataflow.Option{dataflow.WithPipelineID(spec.Name)}, opts...)
	}
	p, err := g.Compile(opts...)
	if err != nil {
		terminate(ops)
		return nil, fmt.Errorf("compile %q: %w", spec.Name, err)
	}
	return p, nil
}

// BuildFile loads a pipeline file and builds it.
func BuildFile(path string, kinds *Kinds, load []config.LoadOption, opts ...dataflow.Option) (*dataflow.Pipeline, error) {
	spec, err := config.LoadFile(path, load...)
	if err != nil {
		return nil, err
	}
	return Build(spec, kinds, opts...)
}

func terminate(ops []dataflow.Operator) {
	for _, op := range ops {
		if t, ok := op.(dataflow.Terminator); ok {
			_ = t.Terminate(context.Background())
		}
	}
}
