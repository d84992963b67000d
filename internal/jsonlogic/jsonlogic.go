// Package jsonlogic evaluates the small JSON-encoded logic language used by
// relay configuration: a rule is a JSON tree whose operator nodes are
// single-key objects ({"if": [...]}, {"==": [...]}, {"var": "a.b"}).
//
// Rules are compiled once into an AST over a closed operator registry, so an
// unknown operator is a compile-time *UnsupportedOperatorError rather than a
// silent misevaluation. Evaluation is a pure tree walk: it reads nothing but
// the rule and the supplied context and mutates neither.
package jsonlogic

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ayurjain-livspace/skurge/internal/pathmap"
)

// UnsupportedOperatorError reports an operator outside the closed registry.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q in logic rule", e.Operator)
}

// operators is the closed registry. Adding an operator means adding it here
// and to (*opNode).eval.
var operators = map[string]bool{
	"var": true, "missing": true, "if": true,
	"==": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"and": true, "or": true, "!": true, "!!": true,
	"in": true, "cat": true,
}

type node interface {
	eval(data interface{}) interface{}
}

// Rule is a compiled logic rule, safe for reuse across evaluations and
// goroutines.
type Rule struct {
	root node
}

// Compile parses a decoded JSON rule into an evaluable Rule.
func Compile(rule interface{}) (*Rule, error) {
	n, err := compile(rule)
	if err != nil {
		return nil, err
	}
	return &Rule{root: n}, nil
}

// Evaluate runs the rule against data and returns the resulting JSON value.
// Identical (rule, data) pairs always yield identical results.
func (r *Rule) Evaluate(data interface{}) interface{} {
	return r.root.eval(data)
}

// Apply compiles and evaluates rule against data in one step.
func Apply(rule, data interface{}) (interface{}, error) {
	r, err := Compile(rule)
	if err != nil {
		return nil, err
	}
	return r.Evaluate(data), nil
}

// IsLogic reports whether v has the shape of an operator application:
// an object with exactly one key.
func IsLogic(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	return ok && len(m) == 1
}

func compile(rule interface{}) (node, error) {
	switch t := rule.(type) {
	case map[string]interface{}:
		if len(t) != 1 {
			// Multi-key objects are plain data, e.g. the value branches of
			// a relay data locator.
			return literal{value: t}, nil
		}
		for op, arg := range t {
			if !operators[op] {
				return nil, &UnsupportedOperatorError{Operator: op}
			}
			args, err := compileArgs(arg)
			if err != nil {
				return nil, err
			}
			return &opNode{op: op, args: args}, nil
		}
		panic("unreachable")
	case []interface{}:
		items := make([]node, len(t))
		for i, e := range t {
			n, err := compile(e)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return arrayNode{items: items}, nil
	default:
		return literal{value: rule}, nil
	}
}

// compileArgs normalises operator arguments: a bare value is a single
// argument, an array is the argument list.
func compileArgs(arg interface{}) ([]node, error) {
	raw, ok := arg.([]interface{})
	if !ok {
		raw = []interface{}{arg}
	}
	args := make([]node, len(raw))
	for i, e := range raw {
		n, err := compile(e)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	return args, nil
}

type literal struct {
	value interface{}
}

func (l literal) eval(interface{}) interface{} { return l.value }

type arrayNode struct {
	items []node
}

func (a arrayNode) eval(data interface{}) interface{} {
	out := make([]interface{}, len(a.items))
	for i, n := range a.items {
		out[i] = n.eval(data)
	}
	return out
}

type opNode struct {
	op   string
	args []node
}

func (o *opNode) eval(data interface{}) interface{} {
	switch o.op {
	case "var":
		return o.evalVar(data)
	case "missing":
		return o.evalMissing(data)
	case "if":
		return o.evalIf(data)
	case "==":
		return looseEqual(o.arg(0, data), o.arg(1, data))
	case "!=":
		return !looseEqual(o.arg(0, data), o.arg(1, data))
	case ">", ">=", "<", "<=":
		return compare(o.op, o.arg(0, data), o.arg(1, data))
	case "and":
		var last interface{}
		for _, n := range o.args {
			last = n.eval(data)
			if !Truthy(last) {
				return last
			}
		}
		return last
	case "or":
		var last interface{}
		for _, n := range o.args {
			last = n.eval(data)
			if Truthy(last) {
				return last
			}
		}
		return last
	case "!":
		return !Truthy(o.arg(0, data))
	case "!!":
		return Truthy(o.arg(0, data))
	case "in":
		return evalIn(o.arg(0, data), o.arg(1, data))
	case "cat":
		var b strings.Builder
		for _, n := range o.args {
			b.WriteString(pathmap.Stringify(n.eval(data)))
		}
		return b.String()
	}
	panic("unreachable: operator outside registry survived compilation")
}

func (o *opNode) arg(i int, data interface{}) interface{} {
	if i >= len(o.args) {
		return nil
	}
	return o.args[i].eval(data)
}

// evalVar dereferences a path in the context. A missing target resolves to
// the operator's default argument (nil when absent) so that "if" cascades
// can fall through instead of failing.
func (o *opNode) evalVar(data interface{}) interface{} {
	path := o.arg(0, data)
	if path == nil || path == "" {
		return data
	}
	var def interface{}
	if len(o.args) > 1 {
		def = o.arg(1, data)
	}
	return pathmap.Get(data, pathmap.Stringify(path), def)
}

func (o *opNode) evalMissing(data interface{}) interface{} {
	keys := make([]interface{}, 0, len(o.args))
	for _, n := range o.args {
		v := n.eval(data)
		if arr, ok := v.([]interface{}); ok {
			keys = append(keys, arr...)
			continue
		}
		keys = append(keys, v)
	}
	missing := []interface{}{}
	for _, k := range keys {
		if !pathmap.Has(data, pathmap.Stringify(k)) {
			missing = append(missing, k)
		}
	}
	return missing
}

// evalIf walks (condition, value) pairs and returns the value of the first
// truthy condition, the trailing else value if one exists, or nil.
func (o *opNode) evalIf(data interface{}) interface{} {
	i := 0
	for ; i+1 < len(o.args); i += 2 {
		if Truthy(o.args[i].eval(data)) {
			return o.args[i+1].eval(data)
		}
	}
	if i < len(o.args) {
		return o.args[i].eval(data)
	}
	return nil
}

func evalIn(needle, haystack interface{}) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(h, s)
	case []interface{}:
		for _, e := range h {
			if looseEqual(needle, e) {
				return true
			}
		}
	}
	return false
}

// Truthy follows json-logic truthiness: nil, false, zero, the empty string
// and empty arrays/objects are falsy, everything else is truthy.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// looseEqual compares numbers numerically regardless of their decoded Go
// type; everything else compares structurally. Cross-type comparisons are
// false rather than coerced.
func looseEqual(a, b interface{}) bool {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		return ok && na == nb
	}
	if _, ok := toNumber(b); ok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compare(op string, a, b interface{}) bool {
	if na, aok := toNumber(a); aok {
		nb, bok := toNumber(b)
		if !bok {
			return false
		}
		switch op {
		case ">":
			return na > nb
		case ">=":
			return na >= nb
		case "<":
			return na < nb
		case "<=":
			return na <= nb
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		switch op {
		case ">":
			return sa > sb
		case ">=":
			return sa >= sb
		case "<":
			return sa < sb
		case "<=":
			return sa <= sb
		}
	}
	return false
}
