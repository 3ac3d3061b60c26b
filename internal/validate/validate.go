// Package validate proves a candidate against a specification's examples.
package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/sandbox"
)

// Mismatch describes the first example a candidate got wrong.
type Mismatch struct {
	Requirement int // index into Specification.Requirements
	Example     int // index into Requirement.Examples
	Inputs      ir.IRObject
	Expected    ir.IRValue
	Actual      ir.IRValue
	Diff        string // go-cmp diff, -expected +actual
}

// ValidationMismatchError reports a candidate that ran but produced the
// wrong output.
type ValidationMismatchError struct {
	SpecID   string
	Mismatch *Mismatch
}

func (e *ValidationMismatchError) Error() string {
	m := e.Mismatch
	exp, _ := ir.MarshalIRValue(m.Expected)
	act, _ := ir.MarshalIRValue(m.Actual)
	return fmt.Sprintf("spec %s: requirement %d example %d: expected %s, got %s",
		e.SpecID, m.Requirement, m.Example, exp, act)
}

// IsMismatch reports whether err is a ValidationMismatchError.
func IsMismatch(err error) bool {
	var me *ValidationMismatchError
	return errors.As(err, &me)
}

// Result is the verdict on one candidate.
//
// OK is true only when every example of every requirement passed. On
// failure Err is a *ValidationMismatchError (Detail set) or a
// *sandbox.ExecutionError.
type Result struct {
	OK      bool
	Detail  *Mismatch
	Err     error
	Checked int // examples that ran to completion, including a mismatching one
}

// Validator runs candidates through an Executor.
type Validator struct {
	Executor sandbox.Executor
}

// New returns a Validator backed by exec.
func New(exec sandbox.Executor) *Validator {
	return &Validator{Executor: exec}
}

// Validate invokes source once per example, in declaration order, and
// compares results by deep structural equality: arrays are order-sensitive,
// objects compare by key set and values, and no kind coercion happens. The
// first failing example stops validation.
func (v *Validator) Validate(ctx context.Context, source string, spec *ir.Specification) Result {
	var res Result
	for ri, req := range spec.Requirements {
		for ei, ex := range req.Examples {
			actual, err := v.Executor.Invoke(ctx, source, ex.Args())
			if err != nil {
				res.Err = fmt.Errorf("spec %s: requirement %d example %d: %w", spec.ID, ri, ei, err)
				return res
			}
			res.Checked++

			if !ir.Equal(ex.Output, actual) {
				res.Detail = &Mismatch{
					Requirement: ri,
					Example:     ei,
					Inputs:      ex.InputObject(),
					Expected:    ex.Output,
					Actual:      actual,
					Diff:        ir.Diff(ex.Output, actual),
				}
				res.Err = &ValidationMismatchError{SpecID: spec.ID, Mismatch: res.Detail}
				return res
			}
		}
	}
	res.OK = true
	return res
}
