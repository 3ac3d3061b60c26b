package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNumbersSpec() *Specification {
	return &Specification{
		ID:          "addNumbers",
		Description: "add 2 numbers",
		Requirements: []Requirement{{
			Description: "when getting 2 numbers, return the sum",
			Examples: []Example{{
				Inputs: []NamedValue{
					{Name: "a", Value: IRInt(1)},
					{Name: "b", Value: IRInt(2)},
				},
				Output: IRObject{"result": IRInt(3)},
			}},
		}},
	}
}

func TestSpecHashDeterminism(t *testing.T) {
	h1, err := SpecHash(addNumbersSpec())
	require.NoError(t, err)

	h2, err := SpecHash(addNumbersSpec())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "SpecHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestSpecHashIgnoresSource(t *testing.T) {
	a := addNumbersSpec()
	b := addNumbersSpec()
	b.Source = "elsewhere/functions.spec.cue"

	assert.Equal(t, MustSpecHash(a), MustSpecHash(b))
}

func TestSpecHashSensitivity(t *testing.T) {
	base := MustSpecHash(addNumbersSpec())

	mutations := []struct {
		name   string
		mutate func(*Specification)
	}{
		{"id", func(s *Specification) { s.ID = "addNumbers2" }},
		{"description", func(s *Specification) { s.Description = "add two numbers" }},
		{"requirement description", func(s *Specification) {
			s.Requirements[0].Description = "sum them"
		}},
		{"input value", func(s *Specification) {
			s.Requirements[0].Examples[0].Inputs[0].Value = IRInt(5)
		}},
		{"input name", func(s *Specification) {
			s.Requirements[0].Examples[0].Inputs[0].Name = "x"
		}},
		{"input order", func(s *Specification) {
			in := s.Requirements[0].Examples[0].Inputs
			in[0], in[1] = in[1], in[0]
		}},
		{"output", func(s *Specification) {
			s.Requirements[0].Examples[0].Output = IRObject{"result": IRInt(4)}
		}},
		{"output kind", func(s *Specification) {
			s.Requirements[0].Examples[0].Output = IRObject{"result": IRString("3")}
		}},
		{"extra example", func(s *Specification) {
			r := &s.Requirements[0]
			r.Examples = append(r.Examples, r.Examples[0])
		}},
		{"extra requirement", func(s *Specification) {
			s.Requirements = append(s.Requirements, s.Requirements[0])
		}},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			spec := addNumbersSpec()
			m.mutate(spec)
			assert.NotEqual(t, base, MustSpecHash(spec))
		})
	}
}

func TestSpecHashExampleOrder(t *testing.T) {
	first := Example{Inputs: []NamedValue{{Name: "a", Value: IRInt(1)}}, Output: IRInt(1)}
	second := Example{Inputs: []NamedValue{{Name: "a", Value: IRInt(2)}}, Output: IRInt(2)}

	s1 := &Specification{ID: "x", Requirements: []Requirement{{Examples: []Example{first, second}}}}
	s2 := &Specification{ID: "x", Requirements: []Requirement{{Examples: []Example{second, first}}}}

	assert.NotEqual(t, MustSpecHash(s1), MustSpecHash(s2))
}

func TestSourceHash(t *testing.T) {
	assert.Equal(t, SourceHash("func() int { return 1 }"), SourceHash("func() int { return 1 }"))
	assert.NotEqual(t, SourceHash("a"), SourceHash("b"))
	assert.Len(t, SourceHash("a"), 64)
}
