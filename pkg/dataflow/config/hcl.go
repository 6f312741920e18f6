package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclFile is the HCL layout of a pipeline:
//
//	pipeline "orders" {
//	  inputs  = ["src"]
//	  outputs = ["out"]
//
//	  node "src" { kind = "passthrough" }
//	  node "big" {
//	    kind   = "filter"
//	    config = { when = "total > ${env.MIN_TOTAL}" }
//	  }
//	  node "out" { kind = "passthrough" }
//
//	  link {
//	    from = "src"
//	    to   = "big"
//	  }
//	}
type hclFile struct {
	Pipeline hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Name    string    `hcl:"name,label"`
	Inputs  []string  `hcl:"inputs"`
	Outputs []string  `hcl:"outputs,optional"`
	Nodes   []hclNode `hcl:"node,block"`
	Links   []hclLink `hcl:"link,block"`
}

type hclNode struct {
	ID     string         `hcl:"id,label"`
	Kind   string         `hcl:"kind"`
	Config hcl.Expression `hcl:"config,optional"`
}

type hclLink struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// ParseHCL parses an HCL pipeline spec. Environment variables are
// available as env.NAME, and the functions upper, lower and join may be
// used in expressions.
func ParseHCL(data []byte, filename string, opts ...LoadOption) (*PipelineSpec, error) {
	o := applyLoadOptions(opts)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl: %s", diags.Error())
	}

	ctx := evalContext(o)
	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, ctx, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("decode hcl: %s", diags.Error())
	}

	spec := &PipelineSpec{
		Name:    raw.Pipeline.Name,
		Inputs:  raw.Pipeline.Inputs,
		Outputs: raw.Pipeline.Outputs,
	}
	for _, n := range raw.Pipeline.Nodes {
		params, err := decodeParams(n, ctx)
		if err != nil {
			return nil, err
		}
		spec.Nodes = append(spec.Nodes, NodeSpec{ID: n.ID, Kind: n.Kind, Config: params})
	}
	for _, l := range raw.Pipeline.Links {
		spec.Links = append(spec.Links, LinkSpec(l))
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func evalContext(o loadOptions) *hcl.EvalContext {
	env := o.env
	if env == nil {
		env = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				env[k] = v
			}
		}
	}
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
		Functions: map[string]function.Function{
			"upper": stdlib.UpperFunc,
			"lower": stdlib.LowerFunc,
			"join":  stdlib.JoinFunc,
		},
	}
}

func decodeParams(n hclNode, ctx *hcl.EvalContext) (map[string]any, error) {
	if n.Config == nil {
		return nil, nil
	}
	val, diags := n.Config.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("node %q config: %s", n.ID, diags.Error())
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("%w: node %q config must be an object, got %s",
			ErrInvalidSpec, n.ID, val.Type().FriendlyName())
	}
	native, err := ctyToNative(val)
	if err != nil {
		return nil, fmt.Errorf("node %q config: %w", n.ID, err)
	}
	params, _ := native.(map[string]any)
	return params, nil
}

// ctyToNative converts a cty value into the plain Go shapes the YAML and
// JSON loaders produce. Whole numbers become int64.
func ctyToNative(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		var s string
		err := gocty.FromCtyValue(val, &s)
		return s, err
	case ty == cty.Number:
		var i int64
		if err := gocty.FromCtyValue(val, &i); err == nil {
			return i, nil
		}
		var f float64
		err := gocty.FromCtyValue(val, &f)
		return f, err
	case ty == cty.Bool:
		var b bool
		err := gocty.FromCtyValue(val, &b)
		return b, err
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			n, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			n, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
	}
}
