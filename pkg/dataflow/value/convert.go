package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FromGo converts a native Go value into a Value.
//
// Supported inputs are nil, bool, all integer and float kinds, string,
// json.Number, []any, []string, map[string]any and Values themselves.
// Go maps have no order, so their keys are inserted sorted.
func FromGo(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(t), nil
	case int8:
		return Int(t), nil
	case int16:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(t), nil
	case uint8:
		return Int(t), nil
	case uint16:
		return Int(t), nil
	case uint32:
		return Int(t), nil
	case uint64:
		if t > 1<<63-1 {
			return Float(float64(t)), nil
		}
		return Int(t), nil
	case float32:
		return Float(t), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return number(t)
	case []string:
		arr := make(Array, len(t))
		for i, s := range t {
			arr[i] = String(s)
		}
		return arr, nil
	case []any:
		arr := make(Array, len(t))
		for i, elem := range t {
			cv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := NewRecord()
		for _, k := range keys {
			cv, err := FromGo(t[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			rec.Set(k, cv)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported go type %T", v)
	}
}

// MustFromGo is FromGo for literals in tests and examples. It panics on error.
func MustFromGo(v any) Value {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}

// ToGo converts v into plain Go values: nil, bool, int64, float64, string,
// []any and map[string]any. Record order is lost in the map.
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case String:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = ToGo(elem)
		}
		return out
	case *Record:
		out := make(map[string]any, t.Len())
		t.Range(func(k string, elem Value) bool {
			out[k] = ToGo(elem)
			return true
		})
		return out
	default:
		return nil
	}
}

// Lookup resolves a dotted path such as "user.tags.0" inside v.
// Numeric segments index arrays. The empty path returns v itself.
func Lookup(v Value, path string) (Value, bool) {
	if path == "" {
		return v, v != nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch t := cur.(type) {
		case *Record:
			next, ok := t.Get(seg)
			if !ok {
				return nil, false
			}
			cur = next
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
