/*
Package expr evaluates small boolean conditions against events.

# Overview

expr is the condition language behind the filter operator and other
declarative pipeline pieces. It is deliberately tiny: comparisons, logical
connectives and field lookups. There are no loops, assignments or function
calls.

# Expression Syntax

	<expr> := <expr> 'or' <expr>
	        | <expr> 'and' <expr>
	        | 'not' <expr>
	        | '!' <expr>
	        | <comparison>
	        | <value>

	<comparison> := <value> <op> <value>
	<op> := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<value> := 'string' | "string" | number | true | false | null | path

'and' binds tighter than 'or'. Operators inside quoted strings are ignored.

# Paths

Against an event (ForEvent), names resolve as follows:

	user.name      dotted path into the payload record
	tags.0         numeric segments index arrays
	_              the whole payload
	$.source       dotted path into the event metadata
	@id @origin    event identity; also @kind, @ingest_ns

A path that does not resolve is null.

# Operators

	==  !=         deep equality; numbers compare numerically, and a string
	               equals a non-string when their text matches
	< > <= >=      numeric comparison; strings compare lexically
	contains       substring for strings, element membership for arrays,
	               key membership for records

# Examples

	ev := event.NewData("orders", 7, value.MustFromGo(map[string]any{
	    "status": "paid", "total": 120, "tags": []any{"vip"},
	}))

	expr.Eval("status == 'paid' and total > 100", expr.ForEvent(ev)) // true
	expr.Eval("tags contains 'vip'", expr.ForEvent(ev))               // true
	expr.Eval("@origin == 'orders'", expr.ForEvent(ev))               // true

# Custom Operators

	e := expr.New(
	    expr.WithCustomOperator("matches", func(left, right value.Value) bool {
	        matched, _ := regexp.MatchString(expr.Text(right), expr.Text(left))
	        return matched
	    }),
	)
	ok, _ := e.Evaluate("name matches '^test.*'", env)

# Truthiness

A single value is true unless it is null, false, zero, an empty string, an
empty array or an empty record.
*/
package expr
