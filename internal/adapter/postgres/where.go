package postgres

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TenantCMS/internal/domain"
	"github.com/Strob0t/TenantCMS/internal/domain/query"
)

// valueKind selects how operands are converted before they are bound.
type valueKind uint8

const (
	kindText valueKind = iota
	kindUUID
	kindBool
	kindTime
)

// column maps a filter path to SQL. Multi-valued paths set from to a row
// source whose rows are tested with EXISTS; expr then refers to that source.
type column struct {
	expr string
	kind valueKind
	from string
}

// fieldMap lists the filterable paths of one table, aliased as x.
type fieldMap map[string]column

// tenantRelation reads a field of the owning tenant ("tenant.slug").
func tenantRelation(field string) column {
	return column{expr: "(SELECT t." + field + " FROM tenants t WHERE t.id = x.tenant_id)"}
}

var tenantFields = fieldMap{
	"id":                {expr: "x.id", kind: kindUUID},
	"name":              {expr: "x.name"},
	"slug":              {expr: "x.slug"},
	"domain":            {expr: "x.domain"},
	"allow_public_read": {expr: "x.allow_public_read", kind: kindBool},
	"created_at":        {expr: "x.created_at", kind: kindTime},
	"updated_at":        {expr: "x.updated_at", kind: kindTime},
}

var userFields = fieldMap{
	"id":             {expr: "x.id", kind: kindUUID},
	"email":          {expr: "x.email"},
	"name":           {expr: "x.name"},
	"roles":          {expr: "r.role", from: "unnest(x.roles) AS r(role)"},
	"tenants.tenant": {expr: "ut.tenant_id", kind: kindUUID, from: "user_tenants ut WHERE ut.user_id = x.id"},
	"created_at":     {expr: "x.created_at", kind: kindTime},
	"updated_at":     {expr: "x.updated_at", kind: kindTime},
}

// compiler turns a query.Where into a parameterized SQL condition.
type compiler struct {
	fields fieldMap
	args   []any
}

func newCompiler(fields fieldMap, args ...any) *compiler {
	return &compiler{fields: fields, args: args}
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

// compile returns the SQL condition for w; "TRUE" when w is empty.
func (c *compiler) compile(w query.Where) (string, error) {
	var parts []string
	for _, path := range slices.Sorted(maps.Keys(w.Fields)) {
		col, ok := c.fields[path]
		if !ok {
			return "", domain.NewValidationError("where", fmt.Sprintf("unknown filter field %q", path))
		}
		cond := w.Fields[path]
		for _, op := range slices.Sorted(maps.Keys(cond)) {
			s, err := c.condition(col, op, cond[op])
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
	}
	for _, sub := range w.And {
		s, err := c.compile(sub)
		if err != nil {
			return "", err
		}
		if s != "TRUE" {
			parts = append(parts, "("+s+")")
		}
	}
	if len(w.Or) > 0 {
		ors := make([]string, 0, len(w.Or))
		for _, sub := range w.Or {
			s, err := c.compile(sub)
			if err != nil {
				return "", err
			}
			ors = append(ors, "("+s+")")
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	if len(parts) == 0 {
		return "TRUE", nil
	}
	return strings.Join(parts, " AND "), nil
}

func (c *compiler) condition(col column, op query.Op, operand any) (string, error) {
	if col.from != "" {
		return c.multiValued(col, op, operand)
	}
	switch op {
	case query.OpEquals:
		v, ok, err := convert(col.kind, operand)
		if err != nil {
			return "", err
		}
		if !ok {
			return "FALSE", nil
		}
		return col.expr + " = " + c.bind(v), nil
	case query.OpNotEquals:
		v, ok, err := convert(col.kind, operand)
		if err != nil {
			return "", err
		}
		if !ok {
			return "TRUE", nil
		}
		return col.expr + " IS DISTINCT FROM " + c.bind(v), nil
	case query.OpIn, query.OpNotIn:
		list, err := convertList(col.kind, op, operand)
		if err != nil {
			return "", err
		}
		if list == nil {
			if op == query.OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		in := col.expr + " = ANY(" + c.bind(list) + ")"
		if op == query.OpIn {
			return in, nil
		}
		return "NOT COALESCE(" + in + ", FALSE)", nil
	case query.OpExists:
		present := col.expr + " IS NOT NULL"
		switch col.kind {
		case kindText:
			present = "COALESCE(" + col.expr + ", '') <> ''"
		case kindBool:
			present = "TRUE"
		}
		if want, _ := operand.(bool); want {
			return present, nil
		}
		return "NOT (" + present + ")", nil
	case query.OpLike:
		return col.expr + "::text ILIKE " + c.bind(likePattern(operand)), nil
	default:
		return "", domain.NewValidationError("where", fmt.Sprintf("unsupported operator %q", op))
	}
}

// multiValued tests whether any row of col.from satisfies the operator;
// negative operators require that none does.
func (c *compiler) multiValued(col column, op query.Op, operand any) (string, error) {
	from := col.from
	if !strings.Contains(from, " WHERE ") {
		from += " WHERE TRUE"
	}
	exists := func(cond string) string {
		return "EXISTS (SELECT 1 FROM " + from + " AND " + cond + ")"
	}
	switch op {
	case query.OpEquals, query.OpNotEquals:
		v, ok, err := convert(col.kind, operand)
		if err != nil {
			return "", err
		}
		if !ok {
			return sqlBool(op == query.OpNotEquals), nil
		}
		s := exists(col.expr + " = " + c.bind(v))
		if op == query.OpNotEquals {
			return "NOT " + s, nil
		}
		return s, nil
	case query.OpIn, query.OpNotIn:
		list, err := convertList(col.kind, op, operand)
		if err != nil {
			return "", err
		}
		if list == nil {
			return sqlBool(op == query.OpNotIn), nil
		}
		s := exists(col.expr + " = ANY(" + c.bind(list) + ")")
		if op == query.OpNotIn {
			return "NOT " + s, nil
		}
		return s, nil
	case query.OpExists:
		s := exists("TRUE")
		if want, _ := operand.(bool); want {
			return s, nil
		}
		return "NOT " + s, nil
	case query.OpLike:
		return exists(col.expr + "::text ILIKE " + c.bind(likePattern(operand))), nil
	default:
		return "", domain.NewValidationError("where", fmt.Sprintf("unsupported operator %q", op))
	}
}

// convert maps an operand to the Go value bound for kind. ok is false when
// the operand can never equal a stored value (for example a malformed UUID).
func convert(kind valueKind, operand any) (any, bool, error) {
	text := query.Text(operand)
	switch kind {
	case kindUUID:
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, false, nil
		}
		return id, true, nil
	case kindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, false, nil
		}
		return b, true, nil
	case kindTime:
		ts, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, false, domain.NewValidationError("where", fmt.Sprintf("invalid timestamp %q", text))
		}
		return ts, true, nil
	default:
		return text, true, nil
	}
}

// convertList converts an in / not_in operand. A nil result means no element
// can match.
func convertList(kind valueKind, op query.Op, operand any) (any, error) {
	items, ok := operand.([]any)
	if !ok {
		return nil, domain.NewValidationError("where", fmt.Sprintf("operator %q requires a list", op))
	}
	var (
		ids   []uuid.UUID
		texts []string
		bools []bool
		times []time.Time
	)
	for _, item := range items {
		v, ok, err := convert(kind, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		switch t := v.(type) {
		case uuid.UUID:
			ids = append(ids, t)
		case bool:
			bools = append(bools, t)
		case time.Time:
			times = append(times, t)
		case string:
			texts = append(texts, t)
		}
	}
	switch {
	case len(ids) > 0:
		return ids, nil
	case len(bools) > 0:
		return bools, nil
	case len(times) > 0:
		return times, nil
	case len(texts) > 0:
		return texts, nil
	default:
		return nil, nil
	}
}

func sqlBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func likePattern(operand any) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query.Text(operand))
	return "%" + escaped + "%"
}

// orderBy maps a sort parameter ("field" or "-field") to an ORDER BY clause.
func orderBy(sortable map[string]string, sort string) (string, error) {
	field, desc := strings.CutPrefix(sort, "-")
	if field == "" {
		return "x.created_at, x.id", nil
	}
	col, ok := sortable[field]
	if !ok {
		return "", domain.NewValidationError("sort", fmt.Sprintf("cannot sort by %q", field))
	}
	if desc {
		return col + " DESC, x.id", nil
	}
	return col + ", x.id", nil
}

// limitOffset renders the paging clause; a non-positive limit returns every row.
func (c *compiler) limitOffset(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		b.WriteString(" LIMIT " + c.bind(limit))
	}
	if offset > 0 {
		b.WriteString(" OFFSET " + c.bind(offset))
	}
	return b.String()
}
