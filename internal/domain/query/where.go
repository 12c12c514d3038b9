// Package query defines the structured predicate ("where" filter) that flows
// between the access policy, the HTTP API and the stores.
//
// A Where is a conjunction of per-field conditions plus optional nested
// "and" / "or" lists:
//
//	{"slug": {"equals": "about"}, "or": [{"status": {"equals": "published"}}, ...]}
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

// Op is a comparison operator applied to one field.
type Op string

const (
	OpEquals    Op = "equals"
	OpNotEquals Op = "not_equals"
	OpIn        Op = "in"
	OpNotIn     Op = "not_in"
	OpExists    Op = "exists"
	OpLike      Op = "like"
)

var validOps = map[Op]bool{
	OpEquals: true, OpNotEquals: true, OpIn: true, OpNotIn: true, OpExists: true, OpLike: true,
}

// Condition maps operators to operands for a single field path.
type Condition map[Op]any

// Where is a predicate over documents. The zero value matches everything.
type Where struct {
	Fields map[string]Condition
	And    []Where
	Or     []Where
}

// Equals matches documents whose field equals v.
func Equals(field string, v any) Where {
	return Where{Fields: map[string]Condition{field: {OpEquals: v}}}
}

// NotEquals matches documents whose field differs from v.
func NotEquals(field string, v any) Where {
	return Where{Fields: map[string]Condition{field: {OpNotEquals: v}}}
}

// In matches documents whose field is one of values. An empty list matches nothing.
func In(field string, values ...string) Where {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Where{Fields: map[string]Condition{field: {OpIn: vs}}}
}

// And conjoins predicates, dropping empty ones.
func And(ws ...Where) Where {
	parts := nonEmpty(ws)
	switch len(parts) {
	case 0:
		return Where{}
	case 1:
		return parts[0]
	default:
		return Where{And: parts}
	}
}

// Or disjoins predicates. An empty operand matches everything, so the result
// is empty (match-all) when any operand is.
func Or(ws ...Where) Where {
	if len(ws) == 0 {
		return Where{}
	}
	for _, w := range ws {
		if w.IsEmpty() {
			return Where{}
		}
	}
	if len(ws) == 1 {
		return ws[0]
	}
	return Where{Or: slices.Clone(ws)}
}

// IsEmpty reports whether w places no constraint.
func (w Where) IsEmpty() bool {
	return len(w.Fields) == 0 && len(nonEmpty(w.And)) == 0 && len(w.Or) == 0
}

// Paths returns every field path referenced anywhere in w, sorted.
func (w Where) Paths() []string {
	seen := map[string]bool{}
	w.walk(func(p string) { seen[p] = true })
	return slices.Sorted(maps.Keys(seen))
}

func (w Where) walk(fn func(path string)) {
	for p := range w.Fields {
		fn(p)
	}
	for _, sub := range w.And {
		sub.walk(fn)
	}
	for _, sub := range w.Or {
		sub.walk(fn)
	}
}

// Without returns a copy of w with every condition whose path satisfies drop
// removed, at any nesting depth, together with the removed paths. Branches
// left empty are pruned.
func (w Where) Without(drop func(path string) bool) (Where, []string) {
	var removed []string
	out := w.without(drop, &removed)
	return out, removed
}

func (w Where) without(drop func(string) bool, removed *[]string) Where {
	var out Where
	for p, c := range w.Fields {
		if drop(p) {
			*removed = append(*removed, p)
			continue
		}
		if out.Fields == nil {
			out.Fields = map[string]Condition{}
		}
		out.Fields[p] = c
	}
	for _, sub := range w.And {
		if s := sub.without(drop, removed); !s.IsEmpty() {
			out.And = append(out.And, s)
		}
	}
	for _, sub := range w.Or {
		if s := sub.without(drop, removed); !s.IsEmpty() {
			out.Or = append(out.Or, s)
		}
	}
	return out
}

func nonEmpty(ws []Where) []Where {
	out := make([]Where, 0, len(ws))
	for _, w := range ws {
		if !w.IsEmpty() {
			out = append(out, w)
		}
	}
	return out
}

// MarshalJSON writes the predicate in its wire form.
func (w Where) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(w.Fields)+2)
	for p, c := range w.Fields {
		m[p] = c
	}
	if len(w.And) > 0 {
		m["and"] = w.And
	}
	if len(w.Or) > 0 {
		m["or"] = w.Or
	}
	return json.Marshal(m)
}

// UnmarshalJSON parses the wire form and rejects unknown operators.
func (w *Where) UnmarshalJSON(data []byte) error {
	*w = Where{}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.NewValidationError("where", "filter must be a JSON object")
	}
	for key, val := range raw {
		switch key {
		case "and", "or":
			var subs []Where
			if err := json.Unmarshal(val, &subs); err != nil {
				return err
			}
			if key == "and" {
				w.And = subs
			} else {
				w.Or = subs
			}
		default:
			c, err := parseCondition(key, val)
			if err != nil {
				return err
			}
			if w.Fields == nil {
				w.Fields = map[string]Condition{}
			}
			w.Fields[key] = c
		}
	}
	return nil
}

func parseCondition(path string, data json.RawMessage) (Condition, error) {
	var ops map[Op]any
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, domain.NewValidationError("where", fmt.Sprintf("condition on %q must be an object", path))
	}
	for op, v := range ops {
		if !validOps[op] {
			return nil, domain.NewValidationError("where", fmt.Sprintf("unsupported operator %q on %q", op, path))
		}
		if op == OpIn || op == OpNotIn {
			if _, ok := v.([]any); !ok {
				return nil, domain.NewValidationError("where", fmt.Sprintf("operator %q on %q requires a list", op, path))
			}
		}
		if op == OpExists {
			if _, ok := v.(bool); !ok {
				return nil, domain.NewValidationError("where", fmt.Sprintf("operator exists on %q requires a boolean", path))
			}
		}
	}
	return Condition(ops), nil
}
