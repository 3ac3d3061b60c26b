package harness

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/roach88/specforge/internal/artifact"
	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/lockfile"
)

// checkExpect compares a build report to an expect clause and returns one
// message per mismatch.
func checkExpect(want *ExpectClause, report *engine.Report, calls int) []string {
	var msgs []string

	byState := map[engine.State][]string{}
	for _, o := range report.Outcomes {
		byState[o.State] = append(byState[o.State], o.SpecID)
	}

	check := func(label string, want []string, got []string) {
		if want == nil {
			return
		}
		if !sameSet(want, got) {
			msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", label, sorted(want), sorted(got)))
		}
	}
	check("published", want.Published, byState[engine.StatePublished])
	check("skipped", want.Skipped, byState[engine.StateSkippedUnchanged])
	check("failed", want.Failed, byState[engine.StateFailed])
	check("pruned", want.Pruned, report.Pruned)

	if want.GeneratorCalls != nil && *want.GeneratorCalls != calls {
		msgs = append(msgs, fmt.Sprintf("generator_calls: expected %d, got %d", *want.GeneratorCalls, calls))
	}

	for _, id := range sorted(mapKeys(want.Reasons)) {
		o, ok := report.Outcome(id)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("reason %s: spec not in report", id))
			continue
		}
		if o.Reason != want.Reasons[id] {
			msgs = append(msgs, fmt.Sprintf("reason %s: expected %q, got %q", id, want.Reasons[id], o.Reason))
		}
	}
	return msgs
}

// checkAssertion evaluates one assertion against the workspace.
func (h *Harness) checkAssertion(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertArtifactExists:
		if _, err := os.Stat(artifact.Path(h.outDir, a.Spec)); err != nil {
			return fmt.Errorf("artifact_exists %s: %v", a.Spec, err)
		}
	case AssertArtifactAbsent:
		if _, err := os.Stat(artifact.Path(h.outDir, a.Spec)); !os.IsNotExist(err) {
			return fmt.Errorf("artifact_absent %s: artifact is present", a.Spec)
		}
	case AssertLockContains:
		return h.assertLockContains(a.Spec)
	case AssertLockAbsent:
		rec, err := lockfile.Load(h.lockPath)
		if err != nil {
			return err
		}
		if _, ok := rec[a.Spec]; ok {
			return fmt.Errorf("lock_absent %s: entry present", a.Spec)
		}
	case AssertInvoke:
		return h.assertInvoke(ctx, a)
	case AssertHistoryRuns:
		runs, err := h.store.ListRuns(ctx, 0)
		if err != nil {
			return err
		}
		if len(runs) != a.Count {
			return fmt.Errorf("history_runs: expected %d, got %d", a.Count, len(runs))
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// assertLockContains requires an entry equal to the spec's current
// fingerprint and an artifact recording the same fingerprint.
func (h *Harness) assertLockContains(specID string) error {
	rec, err := lockfile.Load(h.lockPath)
	if err != nil {
		return err
	}
	got, ok := rec[specID]
	if !ok {
		return fmt.Errorf("lock_contains %s: no entry", specID)
	}
	spec, ok := h.specs[specID]
	if !ok {
		return fmt.Errorf("lock_contains %s: spec not discovered", specID)
	}
	want, err := lockfile.Fingerprint(&spec)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("lock_contains %s: entry %s does not match fingerprint %s", specID, got, want)
	}
	a, err := artifact.Read(artifact.Path(h.outDir, specID))
	if err != nil {
		return fmt.Errorf("lock_contains %s: %w", specID, err)
	}
	if a.Fingerprint != want {
		return fmt.Errorf("lock_contains %s: artifact fingerprint %s does not match %s", specID, a.Fingerprint, want)
	}
	return nil
}

func (h *Harness) assertInvoke(ctx context.Context, a Assertion) error {
	art, err := artifact.Read(artifact.Path(h.outDir, a.Spec))
	if err != nil {
		return fmt.Errorf("invoke %s: %w", a.Spec, err)
	}
	args := make([]ir.IRValue, len(a.Args))
	for i, v := range a.Args {
		if args[i], err = ir.FromGo(v); err != nil {
			return fmt.Errorf("invoke %s: argument %d: %w", a.Spec, i, err)
		}
	}
	want, err := ir.FromGo(a.Result)
	if err != nil {
		return fmt.Errorf("invoke %s: result: %w", a.Spec, err)
	}
	got, err := h.executor.Invoke(ctx, art.Source, args)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", a.Spec, err)
	}
	if !ir.Equal(want, got) {
		return fmt.Errorf("invoke %s: %s", a.Spec, ir.Diff(want, got))
	}
	return nil
}

func sameSet(a, b []string) bool {
	return slices.Equal(sorted(a), sorted(b))
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
