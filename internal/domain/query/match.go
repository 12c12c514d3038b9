package query

import (
	"fmt"
	"strings"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

// Resolver returns the values stored at path on one record. Multi-valued
// paths (for example a user's tenant memberships) return every value; ok is
// false when the path is not filterable.
type Resolver func(path string) (values []any, ok bool)

// Match evaluates w against a record. It is used by stores that cannot push
// the predicate down to a query engine.
func Match(w Where, get Resolver) (bool, error) {
	for path, cond := range w.Fields {
		values, ok := get(path)
		if !ok {
			return false, domain.NewValidationError("where", fmt.Sprintf("unknown filter field %q", path))
		}
		for op, operand := range cond {
			hit, err := matchOp(op, operand, values)
			if err != nil {
				return false, err
			}
			if !hit {
				return false, nil
			}
		}
	}
	for _, sub := range w.And {
		hit, err := Match(sub, get)
		if err != nil || !hit {
			return false, err
		}
	}
	if len(w.Or) > 0 {
		matched := false
		for _, sub := range w.Or {
			hit, err := Match(sub, get)
			if err != nil {
				return false, err
			}
			if hit {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func matchOp(op Op, operand any, values []any) (bool, error) {
	switch op {
	case OpEquals:
		return containsValue(values, operand), nil
	case OpNotEquals:
		return !containsValue(values, operand), nil
	case OpIn, OpNotIn:
		list, ok := operand.([]any)
		if !ok {
			return false, domain.NewValidationError("where", fmt.Sprintf("operator %q requires a list", op))
		}
		hit := false
		for _, want := range list {
			if containsValue(values, want) {
				hit = true
				break
			}
		}
		if op == OpIn {
			return hit, nil
		}
		return !hit, nil
	case OpExists:
		want, _ := operand.(bool)
		return present(values) == want, nil
	case OpLike:
		needle := strings.ToLower(Text(operand))
		for _, v := range values {
			if strings.Contains(strings.ToLower(Text(v)), needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, domain.NewValidationError("where", fmt.Sprintf("unsupported operator %q", op))
	}
}

func containsValue(values []any, want any) bool {
	w := Text(want)
	for _, v := range values {
		if Text(v) == w {
			return true
		}
	}
	return false
}

func present(values []any) bool {
	for _, v := range values {
		if v != nil && Text(v) != "" {
			return true
		}
	}
	return false
}

// Text renders an operand or field value in the canonical form used for
// comparisons: JSON numbers, booleans and strings compare by their text.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
