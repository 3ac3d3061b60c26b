package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specforge/internal/ir"
)

func TestParse(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = Parse([]string{"state=failed"})
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: "state", Value: ir.IRString("failed")}, p)

	p, err = Parse([]string{"spec_id=addNumbers", "generator_called=false", "reason=artifact missing"})
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "spec_id", Value: ir.IRString("addNumbers")},
		Equals{Field: "generator_called", Value: ir.IRBool(false)},
		Equals{Field: "reason", Value: ir.IRString("artifact missing")},
	}}, p)

	p, err = Parse([]string{"hash="})
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: "hash", Value: ir.IRString("")}, p, "empty values are allowed")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"state", "want field=value"},
		{"=failed", "want field=value"},
		{"color=red", `unknown field "color"`},
		{"forced=yes", "forced is true or false"},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			_, err := Parse([]string{tt.term})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFields(t *testing.T) {
	assert.Equal(t, []string{"forced", "generator_called", "hash", "reason", "run_id", "spec_id", "state"}, Fields())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate(And{}))
	assert.NoError(t, Validate(&Equals{Field: "forced", Value: ir.IRBool(true)}))

	err := Validate(And{Predicates: []Predicate{
		Equals{Field: "state", Value: ir.IRBool(true)},
		Equals{Field: "forced", Value: ir.IRString("yes")},
		Equals{Field: "spec_id", Value: ir.IRNull{}},
		Equals{Field: "spec_id", Value: ir.IRInt(3)},
		&And{Predicates: []Predicate{Equals{Field: "nope", Value: ir.IRString("x")}}},
	}})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `field "state" compared to a bool`)
	assert.Contains(t, msg, `field "forced" compared to a string`)
	assert.Contains(t, msg, `field "spec_id" compared to null`)
	assert.Contains(t, msg, `field "spec_id" compared to unsupported value ir.IRInt`)
	assert.Contains(t, msg, `unknown field "nope"`)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name   string
		pred   Predicate
		sql    string
		params []any
	}{
		{
			name: "nil matches everything",
			pred: nil,
			sql:  "1 = 1",
		},
		{
			name:   "equals",
			pred:   Equals{Field: "spec_id", Value: ir.IRString("addNumbers")},
			sql:    "o.spec_id = ?",
			params: []any{"addNumbers"},
		},
		{
			name:   "bool becomes integer",
			pred:   &Equals{Field: "forced", Value: ir.IRBool(true)},
			sql:    "r.forced = ?",
			params: []any{int64(1)},
		},
		{
			name: "empty and",
			pred: And{},
			sql:  "1 = 1",
		},
		{
			name: "nested and",
			pred: And{Predicates: []Predicate{
				Equals{Field: "state", Value: ir.IRString("failed")},
				And{Predicates: []Predicate{
					Equals{Field: "reason", Value: ir.IRString("validation")},
					Equals{Field: "generator_called", Value: ir.IRBool(false)},
				}},
			}},
			sql:    "o.state = ? AND (o.reason = ? AND o.generator_called = ?)",
			params: []any{"failed", "validation", int64(0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := Compile(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompileNeverInterpolates(t *testing.T) {
	evil := "x'; DROP TABLE runs; --"
	sql, params, err := Compile(Equals{Field: "spec_id", Value: ir.IRString(evil)})
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{evil}, params)
}

func TestCompileRejectsInvalid(t *testing.T) {
	_, _, err := Compile(Equals{Field: "color", Value: ir.IRString("red")})
	require.Error(t, err)
}
