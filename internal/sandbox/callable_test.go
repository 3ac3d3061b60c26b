package sandbox

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeShape(t *testing.T) {
	c, err := analyze(`func(prefix string, _ bool, xs ...[]int) (map[string]any, error) {
		return map[string]any{"s": strings.Repeat(prefix, len(xs))}, nil
	}`)
	require.NoError(t, err)

	assert.Equal(t, []param{
		{name: "prefix", typ: "string"},
		{name: "arg1", typ: "bool"},
		{name: "xs", typ: "[]int"},
	}, c.params)
	assert.True(t, c.variadic)
	assert.True(t, c.hasError)
	assert.Equal(t, []string{"strings"}, c.refs)
	assert.Equal(t, []string{"encoding/json", "strings"}, c.imports())
}

func TestCheckArity(t *testing.T) {
	fixed, err := analyze(addSource)
	require.NoError(t, err)
	assert.NoError(t, fixed.checkArity(2))
	assert.Error(t, fixed.checkArity(1))

	variadic, err := analyze(`func(a int, rest ...int) int { return a }`)
	require.NoError(t, err)
	assert.NoError(t, variadic.checkArity(1))
	assert.NoError(t, variadic.checkArity(4))
	assert.Error(t, variadic.checkArity(0))
}

func TestProgramGolden(t *testing.T) {
	c, err := analyze(addSource)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "program_add", []byte(c.program(addSource, []string{"1", "2"})))
}

func TestImports(t *testing.T) {
	refs, err := Imports(`func(s string) []string { xs := strings.Fields(s); sort.Strings(xs); return xs }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sort", "strings"}, refs)

	refs, err = Imports(addSource)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = Imports(`not go`)
	assert.Error(t, err)
}
