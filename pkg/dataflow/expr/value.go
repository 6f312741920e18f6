package expr

import (
	"strconv"
	"strings"

	"github.com/randalmurphal/dataflow/pkg/dataflow/event"
	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// Env resolves names used in an expression.
type Env interface {
	Lookup(name string) (value.Value, bool)
}

// Vars is an Env backed by a map. A name that is not a key is tried as a
// dotted path whose first segment is a key.
type Vars map[string]value.Value

// Lookup implements Env.
func (v Vars) Lookup(name string) (value.Value, bool) {
	if val, ok := v[name]; ok {
		return val, true
	}
	head, rest, found := strings.Cut(name, ".")
	if !found {
		return nil, false
	}
	root, ok := v[head]
	if !ok {
		return nil, false
	}
	return value.Lookup(root, rest)
}

// ForEvent returns an Env reading the payload, metadata and identity of ev.
func ForEvent(ev *event.Event) Env {
	return eventEnv{ev: ev}
}

type eventEnv struct {
	ev *event.Event
}

func (e eventEnv) Lookup(name string) (value.Value, bool) {
	switch name {
	case "_":
		return e.ev.Payload(), true
	case "$":
		return e.ev.Meta(), true
	case "@id":
		return value.Int(int64(e.ev.ID())), true
	case "@origin":
		return value.String(e.ev.Origin()), true
	case "@kind":
		return value.String(e.ev.Kind().String()), true
	case "@ingest_ns":
		return value.Int(int64(e.ev.IngestNs())), true
	}
	if path, ok := strings.CutPrefix(name, "$."); ok {
		return value.Lookup(e.ev.Meta(), path)
	}
	if path, ok := strings.CutPrefix(name, "_."); ok {
		return value.Lookup(e.ev.Payload(), path)
	}
	return value.Lookup(e.ev.Payload(), name)
}

// Resolve turns an operand into a value. It handles quoted strings,
// booleans, null, numbers and names looked up in env. Names that do not
// resolve are null.
func Resolve(s string, env Env) value.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return value.Null{}
	}

	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return value.String(s[1 : len(s)-1])
	}

	switch strings.ToLower(s) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	case "null", "nil":
		return value.Null{}
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}

	if env != nil {
		if v, ok := env.Lookup(s); ok && v != nil {
			return v
		}
	}
	return value.Null{}
}

// IsTruthy reports whether v counts as true.
func IsTruthy(v value.Value) bool {
	return value.Truthy(v)
}

// Text renders v for textual comparison: strings as their content,
// everything else in its JSON form.
func Text(v value.Value) string {
	if s, ok := value.AsString(v); ok {
		return s
	}
	return value.Format(v)
}

// ToFloat64 converts a value to float64 for numeric comparison. Strings
// holding a number are converted; anything else is 0.
func ToFloat64(v value.Value) float64 {
	if f, ok := value.AsFloat(v); ok {
		return f
	}
	if s, ok := value.AsString(v); ok {
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f
	}
	return 0
}
