package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// bracePattern matches ${NAME}. Only the brace form is expanded; a bare
// $ is left alone so expressions can address metadata as $.key.
var bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle variables that are not defined.
type MissingAction int

const (
	// MissingKeep keeps the placeholder as-is. This is the default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError fails the load with an UndefinedVariableError.
	MissingError
)

// LookupFunc resolves a variable name.
type LookupFunc func(name string) (string, bool)

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

type expander struct {
	lookup  LookupFunc
	missing MissingAction
	names   []string
}

func newExpander(o loadOptions) *expander {
	lookup := o.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &expander{lookup: lookup, missing: o.missing}
}

func (e *expander) expand(s string) string {
	return bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := e.lookup(name); ok {
			return val
		}
		switch e.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			e.names = append(e.names, name)
		}
		return match
	})
}

// value expands strings anywhere inside a decoded document.
func (e *expander) value(v any) any {
	switch val := v.(type) {
	case string:
		return e.expand(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = e.value(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = e.value(item)
		}
		return out
	default:
		return v
	}
}

func (e *expander) spec(s *PipelineSpec) {
	s.Name = e.expand(s.Name)
	for i := range s.Inputs {
		s.Inputs[i] = e.expand(s.Inputs[i])
	}
	for i := range s.Outputs {
		s.Outputs[i] = e.expand(s.Outputs[i])
	}
	for i := range s.Nodes {
		n := &s.Nodes[i]
		n.ID = e.expand(n.ID)
		n.Kind = e.expand(n.Kind)
		if n.Config != nil {
			n.Config = e.value(n.Config).(map[string]any)
		}
	}
	for i := range s.Links {
		s.Links[i].From = e.expand(s.Links[i].From)
		s.Links[i].To = e.expand(s.Links[i].To)
	}
}

func (e *expander) err() error {
	if len(e.names) == 0 {
		return nil
	}
	return &UndefinedVariableError{Names: e.names}
}

// Expand replaces ${NAME} in s with environment variables, keeping
// placeholders whose variable is unset.
func Expand(s string) string {
	return newExpander(loadOptions{}).expand(s)
}
