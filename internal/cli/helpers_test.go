package cli

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/testutil"
)

// workspace is a scratch project directory with the sample specs and a
// stub generator shared by every command run against it.
type workspace struct {
	dir  string
	gen  *testutil.StubGenerator
	runs int
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "specs/functions.spec.cue", testutil.SampleSpecCUE)
	return &workspace{dir: dir, gen: testutil.NewStubGenerator(testutil.SampleSources())}
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *workspace) specs() string   { return w.path("specs") }
func (w *workspace) out() string     { return w.path("generated") }
func (w *workspace) lock() string    { return w.path("code-lock.json") }
func (w *workspace) history() string { return w.path(".specforge/history.db") }

// buildArgs returns the build command line for this workspace.
func (w *workspace) buildArgs(extra ...string) []string {
	args := []string{"build",
		"--specs", w.specs(),
		"--output", w.out(),
		"--lock", w.lock(),
		"--history", w.history(),
	}
	return append(args, extra...)
}

// run executes one command. Each build gets run ID run-N.
func (w *workspace) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	w.runs++
	runID := fmt.Sprintf("run-%d", w.runs)

	cmd := newRootCommand(&RootOptions{LogWriter: io.Discard}, func(b *BuildOptions) {
		b.Generator = w.gen
		b.RunIDs = engine.NewFixedGenerator(runID)
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
