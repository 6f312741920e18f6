// Package value provides the JSON-like value model carried by events.
//
// A Value is one of Null, Bool, Int, Float, String, Array or *Record.
// Records keep insertion order for iteration while lookups are by key,
// so two records with the same fields in a different order are Equal.
//
// Values are treated as immutable once attached to an event. Operators
// that need a modified payload derive a copy (Record.With, Array.Append)
// instead of mutating a value another consumer may still see.
package value

import (
	"fmt"
	"math"
)

// Kind identifies the variant of a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindRecord
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Value is a sealed interface implemented only by the types in this package.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the JSON null value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is a signed 64-bit integer value.
type Int int64

// Float is a 64-bit floating point value.
type Float float64

// String is a UTF-8 string value.
type String string

// Array is an ordered sequence of values.
type Array []Value

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Int) sealed()    {}
func (Float) sealed()  {}
func (String) sealed() {}
func (Array) sealed()  {}

// Append returns a new array with vals appended. The receiver is not modified.
func (a Array) Append(vals ...Value) Array {
	out := make(Array, 0, len(a)+len(vals))
	out = append(out, a...)
	return append(out, vals...)
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// AsFloat converts numeric values to float64.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsInt converts v to int64. Floats convert only when they have no
// fractional part.
func AsInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Float:
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

// AsString returns the string content of a String value.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// Truthy reports whether v counts as true in a condition.
// Null, false, zero numbers, empty strings, arrays and records are false.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Float:
		return t != 0
	case String:
		return t != ""
	case Array:
		return len(t) > 0
	case *Record:
		return t.Len() > 0
	default:
		return true
	}
}

// Equal reports deep equality. Int and Float compare numerically;
// records compare by key set regardless of insertion order.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if fa, ok := AsFloat(a); ok {
		fb, ok := AsFloat(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Record:
		y, ok := b.(*Record)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, found := y.Get(k)
			if !found || !Equal(x.fields[k], yv) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders v in a compact, human readable form.
func Format(v Value) string {
	if v == nil {
		return "null"
	}
	b, err := Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.Kind(), err)
	}
	return string(b)
}
