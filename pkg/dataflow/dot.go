package dataflow

import (
	"bytes"
	"fmt"
	"io"
)

// WriteDOT renders the pipeline in Graphviz DOT format. With reverse set it
// renders the contraflow graph instead: edges point upstream and are dashed.
//
// Inputs are drawn as invhouse, outputs as house and nodes that handle
// contraflow are filled. Edges carry their ports as tail and head labels.
func (p *Pipeline) WriteDOT(w io.Writer, reverse bool) error {
	var b bytes.Buffer

	name := p.cfg.pipelineID
	edges := p.edges
	edgeStyle := ""
	if reverse {
		name += "-contraflow"
		edges = p.rev.edges
		edgeStyle = ", style=dashed"
	}

	fmt.Fprintf(&b, "digraph %q {\n", name)
	fmt.Fprintf(&b, "  rankdir=LR;\n")
	for _, n := range p.nodes {
		shape := "box"
		switch {
		case n.isInput:
			shape = "invhouse"
		case n.isOutput:
			shape = "house"
		}
		fill := ""
		if n.hasContra {
			fill = ", style=filled, fillcolor=lightgray"
		}
		fmt.Fprintf(&b, "  %q [shape=%s%s];\n", n.id, shape, fill)
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "  %q -> %q [taillabel=%q, headlabel=%q%s];\n",
			e.From, e.To, e.FromPort, e.ToPort, edgeStyle)
	}
	fmt.Fprintf(&b, "}\n")

	_, err := io.Copy(w, &b)
	return err
}

// DOT returns the forward graph in DOT format.
func (p *Pipeline) DOT() string {
	var b bytes.Buffer
	_ = p.WriteDOT(&b, false)
	return b.String()
}
