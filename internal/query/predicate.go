package query

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/specforge/internal/ir"
)

// Predicate is a filter condition. Only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches outcomes whose Field equals Value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And matches outcomes that satisfy every predicate. An empty And matches
// everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Kind is the value type of a field.
type Kind int

const (
	KindString Kind = iota
	KindBool
)

// field maps a filter field to its column in the history tables. Outcomes
// are aliased o, runs r.
type field struct {
	column string
	kind   Kind
}

var fields = map[string]field{
	"spec_id":          {"o.spec_id", KindString},
	"run_id":           {"o.run_id", KindString},
	"state":            {"o.state", KindString},
	"reason":           {"o.reason", KindString},
	"hash":             {"o.hash", KindString},
	"generator_called": {"o.generator_called", KindBool},
	"forced":           {"r.forced", KindBool},
}

// Fields returns the filterable field names, sorted.
func Fields() []string {
	return slices.Sorted(maps.Keys(fields))
}

// Parse turns field=value terms into a conjunction. Values of bool fields
// must be "true" or "false"; everything else is taken as a string. No terms
// yields nil, which matches everything.
func Parse(terms []string) (Predicate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	and := And{}
	for _, term := range terms {
		name, raw, ok := strings.Cut(term, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("filter %q: want field=value", term)
		}
		f, known := fields[name]
		if !known {
			return nil, fmt.Errorf("filter %q: unknown field %q (known: %s)", term, name, strings.Join(Fields(), ", "))
		}
		var v ir.IRValue = ir.IRString(raw)
		if f.kind == KindBool {
			switch raw {
			case "true":
				v = ir.IRBool(true)
			case "false":
				v = ir.IRBool(false)
			default:
				return nil, fmt.Errorf("filter %q: %s is true or false", term, name)
			}
		}
		and.Predicates = append(and.Predicates, Equals{Field: name, Value: v})
	}
	if len(and.Predicates) == 1 {
		return and.Predicates[0], nil
	}
	return and, nil
}
