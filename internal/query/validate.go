package query

import (
	"errors"
	"fmt"

	"github.com/roach88/specforge/internal/ir"
)

// Validate checks that every Equals names a known field and carries a
// value of that field's kind. nil is valid and matches everything.
func Validate(p Predicate) error {
	v := &validator{}
	v.predicate(p)
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.equals(pred)
	case *Equals:
		v.equals(*pred)
	case And:
		v.and(pred)
	case *And:
		v.and(*pred)
	default:
		v.addError("unsupported predicate type %T", p)
	}
}

func (v *validator) equals(eq Equals) {
	f, ok := fields[eq.Field]
	if !ok {
		v.addError("unknown field %q", eq.Field)
		return
	}
	switch eq.Value.(type) {
	case ir.IRString:
		if f.kind != KindString {
			v.addError("field %q compared to a string", eq.Field)
		}
	case ir.IRBool:
		if f.kind != KindBool {
			v.addError("field %q compared to a bool", eq.Field)
		}
	case nil, ir.IRNull:
		v.addError("field %q compared to null", eq.Field)
	default:
		v.addError("field %q compared to unsupported value %T", eq.Field, eq.Value)
	}
}

func (v *validator) and(and And) {
	for _, sub := range and.Predicates {
		v.predicate(sub)
	}
}
