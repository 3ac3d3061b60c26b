package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const functionsSpec = `
addNumbers: {
	specId:      "addNumbers"
	description: "add 2 numbers"
	specifications: [{
		description: "when getting 2 numbers, return the sum"
		sampleExpectations: [{inputs: {a: 1, b: 2}, output: {result: 3}}]
	}]
}
mergeSortedArrays: {
	specId:      "mergeSortedArrays"
	description: "merge two sorted arrays"
	specifications: [{
		description: "when getting two sorted arrays, return a single sorted array"
		sampleExpectations: [{inputs: {a: [1, 3, 7], b: [2, 4, 6]}, output: {result: [1, 2, 3, 4, 6, 7]}}]
	}]
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDiscoverOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "functions.spec.cue"), functionsSpec)
	writeFile(t, filepath.Join(root, "a.spec.yaml"), `
greet:
  specId: greet
  specifications:
    - sampleExpectations:
        - inputs: {name: bob}
          output: hello bob
`)
	// Ordinary sources are never treated as specs.
	writeFile(t, filepath.Join(root, "b", "functions.cue"), `x: 1`)
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	// Hidden directories are skipped.
	writeFile(t, filepath.Join(root, ".cache", "old.spec.cue"), functionsSpec)

	result, errs := Discover(root, LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.FileCount)
	ids := make([]string, len(result.Specs))
	for i, s := range result.Specs {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"greet", "addNumbers", "mergeSortedArrays"}, ids)
	assert.Equal(t, filepath.Join(root, "b", "functions.spec.cue"), result.Specs[1].Source)
}

func TestDiscoverSkipsMalformed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "functions.spec.cue"), functionsSpec+`
noId: {
	description: "forgot the id"
	specifications: [{sampleExpectations: [{inputs: {}, output: 1}]}]
}
`)
	writeFile(t, filepath.Join(root, "z", "broken.spec.cue"), `this is not cue {`)

	result, errs := Discover(root, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 2)
	assert.Len(t, result.Specs, 2, "valid specs survive malformed neighbours")

	var me *MalformedSpecError
	require.True(t, errors.As(errs[0], &me))
	assert.Equal(t, ErrCodeMissingID, me.Code)
	assert.Equal(t, "noId", me.Key)

	require.True(t, errors.As(errs[1], &me))
	assert.Equal(t, ErrCodeLoadFailed, me.Code)
	assert.Empty(t, me.Key)
	assert.True(t, IsMalformed(errs[1]))
}

func TestDiscoverFailFast(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.spec.cue"), `bad: {description: "no id"}`)
	writeFile(t, filepath.Join(root, "b.spec.cue"), functionsSpec)

	result, errs := Discover(root, LoadModeFailFast)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Empty(t, result.Specs)
}

func TestDiscoverDuplicateID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.spec.cue"), functionsSpec)
	writeFile(t, filepath.Join(root, "b.spec.cue"), functionsSpec)

	result, errs := Discover(root, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Len(t, result.Specs, 2)
	for _, s := range result.Specs {
		assert.Equal(t, filepath.Join(root, "a.spec.cue"), s.Source, "first definition wins")
	}

	var me *MalformedSpecError
	require.True(t, errors.As(errs[0], &me))
	assert.Equal(t, ErrCodeDuplicateID, me.Code)
}

const clashingSpecs = `
"math/add": {
	specId: "math/add"
	specifications: [{sampleExpectations: [{inputs: {a: 1, b: 2}, output: 3}]}]
}
math_add: {
	specId: "math_add"
	specifications: [{sampleExpectations: [{inputs: {a: 1, b: 2}, output: 3}]}]
}
"add-numbers": {
	specId: "add-numbers"
	specifications: [{sampleExpectations: [{inputs: {a: 1, b: 2}, output: 3}]}]
}
addNumbers: {
	specId: "addNumbers"
	specifications: [{sampleExpectations: [{inputs: {a: 1, b: 2}, output: 3}]}]
}
`

func TestDiscoverArtifactNameClash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clash.spec.cue"), clashingSpecs)

	result, errs := Discover(root, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 2)

	var ids []string
	for _, s := range result.Specs {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"math/add", "add-numbers"}, ids, "first claimant keeps the name")

	var me *MalformedSpecError
	require.True(t, errors.As(errs[0], &me))
	assert.Equal(t, ErrCodeNameClash, me.Code)
	assert.Equal(t, "math_add", me.Key)
	assert.Contains(t, me.Error(), "math_add.go")

	require.True(t, errors.As(errs[1], &me))
	assert.Equal(t, ErrCodeNameClash, me.Code)
	assert.Equal(t, "addNumbers", me.Key)
	assert.Contains(t, me.Error(), "AddNumbers")
}

func TestDiscoverMissingRoot(t *testing.T) {
	result, errs := Discover(filepath.Join(t.TempDir(), "nope"), LoadModeCollectAll)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestDiscoverEmptyTree(t *testing.T) {
	result, errs := Discover(t.TempDir(), LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Empty(t, result.Specs)
	assert.Zero(t, result.FileCount)
}

func TestIsSpecFile(t *testing.T) {
	assert.True(t, IsSpecFile("functions.spec.cue"))
	assert.True(t, IsSpecFile("functions.spec.yaml"))
	assert.True(t, IsSpecFile("functions.spec.yml"))
	assert.False(t, IsSpecFile("functions.cue"))
	assert.False(t, IsSpecFile("spec.cue"))
	assert.False(t, IsSpecFile("functions.spec.go"))
}
