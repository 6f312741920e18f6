package expr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// Compare compares two values using the specified operator.
// Returns an error for unknown operators.
func Compare(left, right value.Value, op string) (bool, error) {
	switch op {
	case "==":
		return compareEquals(left, right), nil
	case "!=":
		return !compareEquals(left, right), nil
	case "<":
		return compareOrder(left, right) < 0, nil
	case ">":
		return compareOrder(left, right) > 0, nil
	case "<=":
		return compareOrder(left, right) <= 0, nil
	case ">=":
		return compareOrder(left, right) >= 0, nil
	case "contains":
		return compareContains(left, right), nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

func compareEquals(left, right value.Value) bool {
	if value.Equal(left, right) {
		return true
	}
	if value.IsNull(left) || value.IsNull(right) || left.Kind() == right.Kind() {
		return false
	}
	return Text(left) == Text(right)
}

// compareOrder compares numerically unless both sides are strings.
func compareOrder(left, right value.Value) int {
	ls, lok := value.AsString(left)
	rs, rok := value.AsString(right)
	if lok && rok {
		return strings.Compare(ls, rs)
	}
	l, r := ToFloat64(left), ToFloat64(right)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func compareContains(left, right value.Value) bool {
	switch l := left.(type) {
	case value.Array:
		return slices.ContainsFunc(l, func(v value.Value) bool { return compareEquals(v, right) })
	case *value.Record:
		_, ok := l.Get(Text(right))
		return ok
	case nil, value.Null:
		return false
	default:
		return strings.Contains(Text(left), Text(right))
	}
}
