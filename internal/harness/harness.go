package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/loader"
	"github.com/roach88/specforge/internal/lockfile"
	"github.com/roach88/specforge/internal/sandbox"
	"github.com/roach88/specforge/internal/store"
	"github.com/roach88/specforge/internal/testutil"
	"github.com/roach88/specforge/internal/validate"
)

// Harness is the scenario execution engine. It owns a private workspace
// (spec tree, output directory, lock file) and an in-memory history store.
type Harness struct {
	specsDir string
	outDir   string
	lockPath string

	gen      *testutil.StubGenerator
	engine   *engine.Engine
	executor sandbox.Executor
	store    *store.Store
	logger   *slog.Logger

	// specs from the most recent discovery, by specId
	specs map[string]ir.Specification
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary workspace and in-memory
// database for isolation. A non-nil error means the scenario could not be
// executed at all (setup failure or a fatal build error); expectation
// mismatches are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	work, err := os.MkdirTemp("", "specforge-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer os.RemoveAll(work)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		specsDir: filepath.Join(work, "specs"),
		outDir:   filepath.Join(work, "generated"),
		lockPath: filepath.Join(work, lockfile.DefaultPath),
		gen:      testutil.NewStubGenerator(maps.Clone(scenario.Candidates)),
		executor: sandbox.NewInterpreter(sandbox.DefaultTimeout),
		store:    st,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	if h.gen.Sources == nil {
		h.gen.Sources = map[string]string{}
	}

	if err := h.copySpecs(scenario.Specs); err != nil {
		return nil, err
	}

	runIDs := make([]string, len(scenario.Builds))
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("run-%d", i+1)
	}
	h.engine = engine.New(h.gen, validate.New(h.executor),
		engine.WithLogger(h.logger),
		engine.WithClock(testutil.NewStepClock(time.Millisecond)),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runIDs...)),
	)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Builds {
		if err := h.runBuild(ctx, i, step, result); err != nil {
			return result, fmt.Errorf("build %d: %w", i+1, err)
		}
	}

	for _, a := range scenario.Assertions {
		if err := h.checkAssertion(ctx, a); err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

func (h *Harness) copySpecs(paths []string) error {
	if err := os.MkdirAll(h.specsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create specs dir: %w", err)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read spec file: %w", err)
		}
		if err := os.WriteFile(filepath.Join(h.specsDir, filepath.Base(p)), data, 0o644); err != nil {
			return fmt.Errorf("failed to copy spec file: %w", err)
		}
	}
	return nil
}

// runBuild applies a step's changes, runs one full build cycle (discover,
// load lock, build, commit, record history) and checks its expectations.
func (h *Harness) runBuild(ctx context.Context, index int, step BuildStep, result *Result) error {
	for id, src := range step.Candidates {
		h.gen.Set(id, src)
	}
	h.gen.Errors = make(map[string]error, len(step.GeneratorErrors))
	for id, msg := range step.GeneratorErrors {
		h.gen.Errors[id] = errors.New(msg)
	}
	for _, id := range step.DeleteArtifacts {
		if err := os.Remove(artifact.Path(h.outDir, id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete artifact %s: %w", id, err)
		}
	}
	for _, name := range step.RemoveSpecs {
		if err := os.Remove(filepath.Join(h.specsDir, name)); err != nil {
			return fmt.Errorf("remove spec %s: %w", name, err)
		}
	}

	loaded, errs := loader.Discover(h.specsDir, loader.LoadModeCollectAll)
	if loaded == nil {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		h.logger.Warn("skipping malformed spec", "error", err)
	}
	h.specs = make(map[string]ir.Specification, len(loaded.Specs))
	for _, s := range loaded.Specs {
		h.specs[s.ID] = s
	}

	prior, err := lockfile.Load(h.lockPath)
	if err != nil {
		return err
	}
	h.gen.ResetCalls()

	report, rec, buildErr := h.engine.Build(ctx, loaded.Specs, prior, engine.BuildOptions{
		OutputDir: h.outDir,
		Force:     step.Force,
		Prune:     step.Prune,
	})
	if err := lockfile.Commit(h.lockPath, rec); err != nil {
		return err
	}
	if err := h.store.WriteReport(ctx, report); err != nil {
		return err
	}
	if buildErr != nil {
		return buildErr
	}

	trace := BuildTrace{
		RunID:    report.RunID,
		Outcomes: make([]OutcomeTrace, len(report.Outcomes)),
		Pruned:   report.Pruned,
		Lock:     slices.Sorted(maps.Keys(rec)),
	}
	for i, o := range report.Outcomes {
		trace.Outcomes[i] = OutcomeTrace{
			SpecID:          o.SpecID,
			State:           string(o.State),
			Reason:          o.Reason,
			GeneratorCalled: o.GeneratorCalled,
		}
	}
	result.Builds = append(result.Builds, trace)

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, report, h.gen.CallCount()) {
			result.AddError(fmt.Sprintf("build %d: %s", index+1, msg))
		}
	}
	return nil
}
