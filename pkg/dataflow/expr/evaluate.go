package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/dataflow/pkg/dataflow/value"
)

// ErrSyntax indicates a malformed expression.
var ErrSyntax = errors.New("expression syntax error")

// builtinOps lists the comparison operators, longer ones first so that a
// shorter operator never matches part of a longer one.
var builtinOps = []string{"==", "!=", ">=", "<=", ">", "<", " contains "}

// BinaryOp is a function that compares two values and returns a boolean result.
type BinaryOp func(left, right value.Value) bool

// Evaluator evaluates boolean expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary operator.
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates a boolean expression against env.
func (e *Evaluator) Evaluate(expr string, env Env) (bool, error) {
	if err := checkQuotes(expr); err != nil {
		return false, err
	}
	return e.evaluateCondition(expr, env)
}

// Check reports syntax errors in expr without evaluating it against data.
func (e *Evaluator) Check(expr string) error {
	if err := checkQuotes(expr); err != nil {
		return err
	}
	return e.check(expr)
}

// check mirrors evaluateCondition's splitting without short circuits.
func (e *Evaluator) check(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	if err := dangling(expr); err != nil {
		return err
	}
	for _, sep := range []string{" or ", " and "} {
		if left, right, ok := cutOutside(expr, sep); ok {
			if err := operands(expr, left, right); err != nil {
				return err
			}
			return errors.Join(e.check(left), e.check(right))
		}
	}
	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		return e.check(inner)
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok && !strings.HasPrefix(inner, "=") {
		return e.check(inner)
	}
	for _, op := range builtinOps {
		if left, right, ok := cutOutside(expr, op); ok {
			return operands(expr, left, right)
		}
	}
	for name := range e.customOps {
		if left, right, ok := cutOutside(expr, " "+name+" "); ok {
			return operands(expr, left, right)
		}
	}
	return nil
}

// Eval is a convenience function that evaluates an expression using
// the default evaluator (no custom operators).
func Eval(expr string, env Env) (bool, error) {
	return New().Evaluate(expr, env)
}

// evaluateCondition evaluates a condition expression.
func (e *Evaluator) evaluateCondition(expr string, env Env) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}
	if err := dangling(expr); err != nil {
		return false, err
	}

	// or binds loosest, so split on it first.
	if left, right, ok := cutOutside(expr, " or "); ok {
		l, err := e.evaluateOperand(expr, left, right, env)
		if err != nil || l {
			return l, err
		}
		return e.evaluateCondition(right, env)
	}
	if left, right, ok := cutOutside(expr, " and "); ok {
		l, err := e.evaluateOperand(expr, left, right, env)
		if err != nil || !l {
			return false, err
		}
		return e.evaluateCondition(right, env)
	}

	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		result, err := e.evaluateCondition(inner, env)
		return !result && err == nil, err
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok && !strings.HasPrefix(inner, "=") {
		result, err := e.evaluateCondition(inner, env)
		return !result && err == nil, err
	}

	for _, op := range builtinOps {
		if left, right, ok := cutOutside(expr, op); ok {
			if err := operands(expr, left, right); err != nil {
				return false, err
			}
			return Compare(Resolve(left, env), Resolve(right, env), strings.TrimSpace(op))
		}
	}

	for name, fn := range e.customOps {
		if left, right, ok := cutOutside(expr, " "+name+" "); ok {
			if err := operands(expr, left, right); err != nil {
				return false, err
			}
			return fn(Resolve(left, env), Resolve(right, env)), nil
		}
	}

	// Single value - check if truthy
	return IsTruthy(Resolve(expr, env)), nil
}

// evaluateOperand evaluates the left side of a logical connective.
func (e *Evaluator) evaluateOperand(expr, left, right string, env Env) (bool, error) {
	if err := operands(expr, left, right); err != nil {
		return false, err
	}
	return e.evaluateCondition(left, env)
}

func operands(expr, left, right string) error {
	if strings.TrimSpace(left) == "" || strings.TrimSpace(right) == "" {
		return fmt.Errorf("%w: missing operand in %q", ErrSyntax, expr)
	}
	return nil
}

// dangling rejects a logical connective with nothing on one side.
func dangling(expr string) error {
	for _, kw := range []string{"and", "or"} {
		if expr == kw || strings.HasPrefix(expr, kw+" ") || strings.HasSuffix(expr, " "+kw) {
			return fmt.Errorf("%w: %q is missing an operand of %q", ErrSyntax, expr, kw)
		}
	}
	return nil
}

// cutOutside splits s around the first sep that is not inside quotes.
func cutOutside(s, sep string) (before, after string, found bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(s[i:], sep):
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func checkQuotes(s string) error {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		}
	}
	if quote != 0 {
		return fmt.Errorf("%w: unterminated string in %q", ErrSyntax, s)
	}
	return nil
}

// Condition is a checked expression bound to an evaluator.
type Condition struct {
	source string
	eval   *Evaluator
}

// Compile checks expr and returns a reusable Condition.
func (e *Evaluator) Compile(expr string) (*Condition, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	if err := e.Check(expr); err != nil {
		return nil, err
	}
	return &Condition{source: expr, eval: e}, nil
}

// Match evaluates the condition against env.
func (c *Condition) Match(env Env) (bool, error) {
	return c.eval.evaluateCondition(c.source, env)
}

// String returns the expression source.
func (c *Condition) String() string {
	return c.source
}
