package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Specification is a declarative description of a function's intended
// behavior plus the concrete examples it must satisfy.
type Specification struct {
	ID           string        `json:"specId"`
	Description  string        `json:"description"`
	Requirements []Requirement `json:"specifications"`

	// Source is the file the spec was discovered in. Diagnostic only;
	// excluded from serialization and from the fingerprint.
	Source string `json:"-"`
}

// Requirement groups examples under a human-readable behavioral statement.
type Requirement struct {
	Description string    `json:"description"`
	Examples    []Example `json:"sampleExpectations"`
}

// Example is one input/output proof obligation.
// Inputs keep their declaration order: their values, in order, are the
// positional arguments passed to the implementation.
type Example struct {
	Inputs []NamedValue `json:"inputs"`
	Output IRValue      `json:"output"`
}

// NamedValue is a single named example input.
type NamedValue struct {
	Name  string
	Value IRValue
}

// Args returns the positional argument list for this example.
func (e Example) Args() []IRValue {
	args := make([]IRValue, len(e.Inputs))
	for i, in := range e.Inputs {
		args[i] = in.Value
	}
	return args
}

// InputObject returns the inputs as an IRObject (declaration order is lost).
func (e Example) InputObject() IRObject {
	obj := make(IRObject, len(e.Inputs))
	for _, in := range e.Inputs {
		obj[in.Name] = in.Value
	}
	return obj
}

// ExampleCount returns the total number of examples across all requirements.
func (s *Specification) ExampleCount() int {
	n := 0
	for _, r := range s.Requirements {
		n += len(r.Examples)
	}
	return n
}

// AllExamples flattens the examples of every requirement, in declared order.
func (s *Specification) AllExamples() []Example {
	examples := make([]Example, 0, s.ExampleCount())
	for _, r := range s.Requirements {
		examples = append(examples, r.Examples...)
	}
	return examples
}

// MarshalJSON writes inputs as a JSON object in declaration order.
// Go maps cannot keep that order, so the object is written by hand.
func (e Example) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"inputs":`)
	inputs, err := marshalOrderedInputs(e.Inputs)
	if err != nil {
		return nil, err
	}
	buf.Write(inputs)

	buf.WriteString(`,"output":`)
	out, err := MarshalIRValue(e.Output)
	if err != nil {
		return nil, fmt.Errorf("marshal output: %w", err)
	}
	buf.Write(out)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalOrderedInputs(inputs []NamedValue) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, in := range inputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(in.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := MarshalIRValue(in.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal input %q: %w", in.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalForm builds the hashing envelope for a spec.
// Inputs are encoded as an ordered list of [name, value] pairs because
// their order is semantically significant.
func (s *Specification) canonicalForm() map[string]any {
	reqs := make([]any, len(s.Requirements))
	for i, r := range s.Requirements {
		examples := make([]any, len(r.Examples))
		for j, ex := range r.Examples {
			inputs := make([]any, len(ex.Inputs))
			for k, in := range ex.Inputs {
				inputs[k] = []any{in.Name, in.Value}
			}
			examples[j] = map[string]any{
				"inputs": inputs,
				"output": ex.Output,
			}
		}
		reqs[i] = map[string]any{
			"description":        r.Description,
			"sampleExpectations": examples,
		}
	}
	return map[string]any{
		"specId":         s.ID,
		"description":    s.Description,
		"specifications": reqs,
	}
}
