package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specforge/internal/ir"
)

func TestCompileSpecBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		addNumbers: {
			specId:      "addNumbers"
			description: "add 2 numbers"
			specifications: [{
				description: "when getting 2 numbers, return the sum"
				sampleExpectations: [{
					inputs: {b: 2, a: 1}
					output: {result: 3}
				}]
			}]
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("addNumbers")))
	require.NoError(t, err)

	assert.Equal(t, "addNumbers", spec.ID)
	assert.Equal(t, "add 2 numbers", spec.Description)
	require.Len(t, spec.Requirements, 1)
	assert.Equal(t, "when getting 2 numbers, return the sum", spec.Requirements[0].Description)
	require.Len(t, spec.Requirements[0].Examples, 1)

	ex := spec.Requirements[0].Examples[0]
	// Declaration order, not alphabetical.
	assert.Equal(t, []ir.NamedValue{
		{Name: "b", Value: ir.IRInt(2)},
		{Name: "a", Value: ir.IRInt(1)},
	}, ex.Inputs)
	assert.Equal(t, ir.IRObject{"result": ir.IRInt(3)}, ex.Output)
}

func TestCompileSpecValueKinds(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		kinds: {
			specId: "kinds"
			specifications: [{
				sampleExpectations: [{
					inputs: {
						s: "x"
						f: 2.5
						whole: 4.0
						b: true
						n: null
						l: [1, [2]]
					}
					output: {"quoted key": "ok"}
				}]
			}]
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("kinds")))
	require.NoError(t, err)

	args := spec.Requirements[0].Examples[0].Args()
	assert.Equal(t, []ir.IRValue{
		ir.IRString("x"),
		ir.IRFloat(2.5),
		ir.IRInt(4),
		ir.IRBool(true),
		ir.IRNull{},
		ir.IRArray{ir.IRInt(1), ir.IRArray{ir.IRInt(2)}},
	}, args)
	assert.Equal(t, ir.IRObject{"quoted key": ir.IRString("ok")}, spec.Requirements[0].Examples[0].Output)
}

func TestCompileSpecErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing specId",
			src:   `x: {description: "d", specifications: [{sampleExpectations: [{inputs: {}, output: 1}]}]}`,
			field: "specId",
		},
		{
			name:  "empty specId",
			src:   `x: {specId: "", specifications: [{sampleExpectations: [{inputs: {}, output: 1}]}]}`,
			field: "specId",
		},
		{
			name:  "no requirements",
			src:   `x: {specId: "x", specifications: []}`,
			field: "specifications",
		},
		{
			name:  "missing requirements",
			src:   `x: {specId: "x"}`,
			field: "specifications",
		},
		{
			name:  "no examples",
			src:   `x: {specId: "x", specifications: [{description: "r", sampleExpectations: []}]}`,
			field: "sampleExpectations",
		},
		{
			name:  "missing output",
			src:   `x: {specId: "x", specifications: [{sampleExpectations: [{inputs: {a: 1}}]}]}`,
			field: "output",
		},
		{
			name:  "missing inputs",
			src:   `x: {specId: "x", specifications: [{sampleExpectations: [{output: 1}]}]}`,
			field: "inputs",
		},
		{
			name:  "non-concrete value",
			src:   `x: {specId: "x", specifications: [{sampleExpectations: [{inputs: {a: int}, output: 1}]}]}`,
			field: "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileSpec(v.LookupPath(cue.ParsePath("x")))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "expected CompileError, got %T", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileCUEFilePreservesOrder(t *testing.T) {
	src := `
package specs

_shared: "not a spec"

zeta: {
	specId: "zeta"
	specifications: [{sampleExpectations: [{inputs: {}, output: 1}]}]
}
alpha: {
	description: "missing id"
}
mid: {
	specId: "mid"
	specifications: [{sampleExpectations: [{inputs: {x: 1}, output: 2}]}]
}
`
	specs, err := CompileCUEFile("functions.spec.cue", []byte(src))
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "zeta", specs[0].Name)
	require.NoError(t, specs[0].Err)
	assert.Equal(t, "alpha", specs[1].Name)
	require.Error(t, specs[1].Err)
	assert.Equal(t, "mid", specs[2].Name)
	require.NoError(t, specs[2].Err)
	assert.Equal(t, "mid", specs[2].Spec.ID)
}

func TestCompileCUEFileSyntaxError(t *testing.T) {
	_, err := CompileCUEFile("broken.spec.cue", []byte(`x: {`))
	require.Error(t, err)
}

func TestCompileYAMLFile(t *testing.T) {
	src := `
mergeSortedArrays:
  specId: mergeSortedArrays
  description: merge two sorted arrays
  specifications:
    - description: when getting two sorted arrays, return a single sorted array
      sampleExpectations:
        - inputs:
            b: [2, 4, 6]
            a: [1, 3, 7]
          output:
            result: [1, 2, 3, 4, 6, 7]
broken:
  description: no id here
`
	specs, err := CompileYAMLFile("arrays.spec.yaml", []byte(src))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	require.NoError(t, specs[0].Err)
	spec := specs[0].Spec
	assert.Equal(t, "mergeSortedArrays", spec.ID)
	ex := spec.Requirements[0].Examples[0]
	assert.Equal(t, "b", ex.Inputs[0].Name)
	assert.Equal(t, "a", ex.Inputs[1].Name)
	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRInt(3), ir.IRInt(7)}, ex.Inputs[1].Value)
	assert.Equal(t,
		ir.IRObject{"result": ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3), ir.IRInt(4), ir.IRInt(6), ir.IRInt(7)}},
		ex.Output)

	var ce *CompileError
	require.True(t, errors.As(specs[1].Err, &ce))
	assert.Equal(t, "specId", ce.Field)
	assert.Equal(t, "arrays.spec.yaml", ce.File)
	assert.Greater(t, ce.Line, 0)
}

func TestCompileYAMLFileRejectsNonMapping(t *testing.T) {
	_, err := CompileYAMLFile("list.spec.yaml", []byte("- a\n- b\n"))
	require.Error(t, err)
}

func TestCompileYAMLFileEmpty(t *testing.T) {
	specs, err := CompileYAMLFile("empty.spec.yaml", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, specs)
}
