package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/specforge/internal/ir"
)

// CompileSpec parses a CUE value into a Specification.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the spec struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`addNumbers: { specId: "addNumbers", ... }`)
//	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("addNumbers")))
func CompileSpec(v cue.Value) (*ir.Specification, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "spec",
			Message: "specification must be a struct",
			Pos:     v.Pos(),
		}
	}

	spec := &ir.Specification{}

	// specId (required)
	idVal := v.LookupPath(cue.ParsePath("specId"))
	if !idVal.Exists() {
		return nil, &CompileError{
			Field:   "specId",
			Message: "specId is required",
			Pos:     v.Pos(),
		}
	}
	id, err := idVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if id == "" {
		return nil, &CompileError{
			Field:   "specId",
			Message: "specId must not be empty",
			Pos:     idVal.Pos(),
		}
	}
	spec.ID = id

	// description (optional)
	spec.Description, err = optionalString(v, "description")
	if err != nil {
		return nil, err
	}

	spec.Requirements, err = parseRequirements(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseRequirements extracts the `specifications` list. At least one
// requirement is required and each must carry at least one example.
func parseRequirements(v cue.Value) ([]ir.Requirement, error) {
	reqsVal := v.LookupPath(cue.ParsePath("specifications"))
	if !reqsVal.Exists() {
		return nil, &CompileError{
			Field:   "specifications",
			Message: "at least one requirement is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := reqsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var reqs []ir.Requirement
	for iter.Next() {
		reqVal := iter.Value()

		desc, err := optionalString(reqVal, "description")
		if err != nil {
			return nil, err
		}

		examples, err := parseExamples(reqVal)
		if err != nil {
			return nil, err
		}

		reqs = append(reqs, ir.Requirement{
			Description: desc,
			Examples:    examples,
		})
	}

	if len(reqs) == 0 {
		return nil, &CompileError{
			Field:   "specifications",
			Message: "at least one requirement is required",
			Pos:     reqsVal.Pos(),
		}
	}
	return reqs, nil
}

// parseExamples extracts `sampleExpectations` from a requirement.
func parseExamples(reqVal cue.Value) ([]ir.Example, error) {
	exVal := reqVal.LookupPath(cue.ParsePath("sampleExpectations"))
	if !exVal.Exists() {
		return nil, &CompileError{
			Field:   "sampleExpectations",
			Message: "at least one example is required",
			Pos:     reqVal.Pos(),
		}
	}

	iter, err := exVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var examples []ir.Example
	for iter.Next() {
		ex, err := parseExample(iter.Value())
		if err != nil {
			return nil, err
		}
		examples = append(examples, ex)
	}

	if len(examples) == 0 {
		return nil, &CompileError{
			Field:   "sampleExpectations",
			Message: "at least one example is required",
			Pos:     exVal.Pos(),
		}
	}
	return examples, nil
}

// parseExample reads inputs in declaration order and the expected output.
func parseExample(v cue.Value) (ir.Example, error) {
	var ex ir.Example

	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if !inputsVal.Exists() {
		return ex, &CompileError{
			Field:   "inputs",
			Message: "example inputs are required",
			Pos:     v.Pos(),
		}
	}
	fields, err := inputsVal.Fields()
	if err != nil {
		return ex, &CompileError{
			Field:   "inputs",
			Message: "example inputs must be a struct",
			Pos:     inputsVal.Pos(),
		}
	}
	ex.Inputs = []ir.NamedValue{}
	for fields.Next() {
		val, err := ValueFromCUE(fields.Value())
		if err != nil {
			return ex, err
		}
		ex.Inputs = append(ex.Inputs, ir.NamedValue{Name: fields.Selector().Unquoted(), Value: val})
	}

	outputVal := v.LookupPath(cue.ParsePath("output"))
	if !outputVal.Exists() {
		return ex, &CompileError{
			Field:   "output",
			Message: "example output is required",
			Pos:     v.Pos(),
		}
	}
	ex.Output, err = ValueFromCUE(outputVal)
	if err != nil {
		return ex, err
	}

	return ex, nil
}

// ValueFromCUE converts a concrete CUE value into an IRValue.
// Struct fields are read in declaration order; numbers follow the
// IRInt/IRFloat normalization of ir.NewNumber.
func ValueFromCUE(v cue.Value) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		num, err := ir.NewNumber(f)
		if err != nil {
			return nil, &CompileError{Field: "value", Message: err.Error(), Pos: v.Pos()}
		}
		return num, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := ValueFromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := ValueFromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Selector().Unquoted()] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("example values must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", field),
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
// CUE sources carry a token.Pos; YAML sources carry File/Line/Column.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	File   string
	Line   int
	Column int
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
