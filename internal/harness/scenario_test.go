package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.spec.cue"), []byte("x: 1\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenarioResolvesSpecPaths(t *testing.T) {
	path := writeScenario(t, `
name: ok
description: resolves paths
specs: [a.spec.cue]
builds:
  - expect:
      generator_calls: 0
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "a.spec.cue"), s.Specs[0])
	require.Len(t, s.Builds, 1)
	require.NotNil(t, s.Builds[0].Expect.GeneratorCalls)
	assert.Equal(t, 0, *s.Builds[0].Expect.GeneratorCalls)
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: d\nspecs: [a.spec.cue]\nbuild: []\n",
			errMsg:  "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: d\nspecs: [a.spec.cue]\nbuilds: [{}]\n",
			errMsg:  "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nspecs: [a.spec.cue]\nbuilds: [{}]\n",
			errMsg:  "description is required",
		},
		{
			name:    "no specs",
			content: "name: x\ndescription: d\nbuilds: [{}]\n",
			errMsg:  "specs list is required",
		},
		{
			name:    "no builds",
			content: "name: x\ndescription: d\nspecs: [a.spec.cue]\n",
			errMsg:  "builds list is required",
		},
		{
			name:    "spec file missing",
			content: "name: x\ndescription: d\nspecs: [nope.spec.cue]\nbuilds: [{}]\n",
			errMsg:  "spec file not found",
		},
		{
			name:    "negative generator calls",
			content: "name: x\ndescription: d\nspecs: [a.spec.cue]\nbuilds: [{expect: {generator_calls: -1}}]\n",
			errMsg:  "generator_calls must be non-negative",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: d\nspecs: [a.spec.cue]\nbuilds: [{}]\nassertions: [{type: nope}]\n",
			errMsg:  `unknown assertion type "nope"`,
		},
		{
			name:    "assertion without spec",
			content: "name: x\ndescription: d\nspecs: [a.spec.cue]\nbuilds: [{}]\nassertions: [{type: lock_contains}]\n",
			errMsg:  "spec is required for lock_contains",
		},
		{
			name:    "invoke without result",
			content: "name: x\ndescription: d\nspecs: [a.spec.cue]\nbuilds: [{}]\nassertions: [{type: invoke, spec: a}]\n",
			errMsg:  "result is required for invoke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
