package query

import (
	"fmt"
	"strings"

	"github.com/roach88/specforge/internal/ir"
)

// OrderBy is the ORDER BY clause every history query uses: newest build
// first, then processing order within a build. COLLATE BINARY keeps text
// ordering stable across SQLite versions.
const OrderBy = "r.started_at DESC, r.run_id COLLATE BINARY DESC, o.seq ASC"

// Compile validates p and converts it to a WHERE clause fragment with ?
// placeholders. nil compiles to an always-true condition.
func Compile(p Predicate) (string, []any, error) {
	if err := Validate(p); err != nil {
		return "", nil, err
	}
	return compilePredicate(p)
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	param, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return fields[eq.Field].column + " = ?", []any{param}, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, p, err := compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		if _, nested := sub.(And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// toParam converts a literal to a SQL parameter. Bools become 0/1, which
// is how the history tables store them.
func toParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
