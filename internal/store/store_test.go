package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/query"
	"github.com/roach88/specforge/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(runID string, started time.Time, outcomes ...engine.Outcome) *engine.Report {
	return &engine.Report{
		RunID:    runID,
		Outcomes: outcomes,
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteReport(context.Background(), testReport("run-1", testutil.Epoch)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "h.db"))
	require.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestWriteReportRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := testReport("run-1", testutil.Epoch,
		engine.Outcome{
			SpecID:          "addNumbers",
			State:           engine.StatePublished,
			Hash:            "h1",
			SourceHash:      "s1",
			Reason:          engine.ReasonNew,
			GeneratorCalled: true,
			Duration:        250 * time.Millisecond,
		},
		engine.Outcome{
			SpecID:          "mergeSortedArrays",
			State:           engine.StateFailed,
			Hash:            "h2",
			Reason:          engine.ReasonValidation,
			Error:           "expected [1,2], got [2,1]",
			GeneratorCalled: true,
		},
	)
	r.Force = true
	r.Pruned = []string{"ghost"}
	require.NoError(t, s.WriteReport(ctx, r))

	run, ok, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, run.Started.Equal(testutil.Epoch))
	assert.True(t, run.Finished.Equal(testutil.Epoch.Add(1500*time.Millisecond)))
	assert.True(t, run.Force)
	assert.Equal(t, engine.Counts{Published: 1, Failed: 1}, run.Counts)
	assert.Equal(t, []string{"ghost"}, run.Pruned)

	outcomes, err := s.RunOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, r.Outcomes[0], outcomes[0])
	assert.Equal(t, "mergeSortedArrays", outcomes[1].SpecID)
	assert.Equal(t, engine.StateFailed, outcomes[1].State)
	assert.Equal(t, "expected [1,2], got [2,1]", outcomes[1].Error)
}

func TestWriteReportIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := testReport("run-1", testutil.Epoch, engine.Outcome{SpecID: "a", State: engine.StateSkippedUnchanged})
	require.NoError(t, s.WriteReport(ctx, r))
	require.NoError(t, s.WriteReport(ctx, r))

	outcomes, err := s.RunOutcomes(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		start := testutil.Epoch.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.WriteReport(ctx, testReport(id, start)))
	}
	// Sub-second precision must still order correctly.
	require.NoError(t, s.WriteReport(ctx, testReport("run-d", testutil.Epoch.Add(2*time.Hour+500*time.Millisecond))))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	assert.Equal(t, []string{"run-d", "run-c", "run-b", "run-a"}, ids)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, []string{}, runs[1].Pruned)
}

func TestListRunsEmpty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	_, ok, err := s.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	outcomes, err := s.RunOutcomes(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
}

func TestSpecHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteReport(ctx, testReport("run-1", testutil.Epoch,
		engine.Outcome{SpecID: "addNumbers", State: engine.StatePublished, Reason: engine.ReasonNew, GeneratorCalled: true},
		engine.Outcome{SpecID: "other", State: engine.StatePublished},
	)))
	require.NoError(t, s.WriteReport(ctx, testReport("run-2", testutil.Epoch.Add(time.Minute),
		engine.Outcome{SpecID: "addNumbers", State: engine.StateSkippedUnchanged, Reason: engine.ReasonUnchanged},
	)))

	entries, err := s.SpecHistory(ctx, "addNumbers", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, engine.StateSkippedUnchanged, entries[0].Outcome.State)
	assert.Equal(t, "run-1", entries[1].RunID)
	assert.True(t, entries[1].Outcome.GeneratorCalled)
	assert.True(t, entries[1].Started.Equal(testutil.Epoch))

	entries, err = s.SpecHistory(ctx, "addNumbers", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFindOutcomes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteReport(ctx, testReport("run-1", testutil.Epoch,
		engine.Outcome{SpecID: "addNumbers", State: engine.StatePublished, Reason: engine.ReasonNew, GeneratorCalled: true},
		engine.Outcome{SpecID: "greet", State: engine.StateFailed, Reason: engine.ReasonValidation, GeneratorCalled: true},
	)))
	forced := testReport("run-2", testutil.Epoch.Add(time.Minute),
		engine.Outcome{SpecID: "addNumbers", State: engine.StateFailed, Reason: engine.ReasonGeneration, GeneratorCalled: true},
		engine.Outcome{SpecID: "greet", State: engine.StatePublished, Reason: engine.ReasonForced, GeneratorCalled: true},
	)
	forced.Force = true
	require.NoError(t, s.WriteReport(ctx, forced))

	ids := func(entries []SpecEntry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.RunID + "/" + e.Outcome.SpecID
		}
		return out
	}

	all, err := s.FindOutcomes(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2/addNumbers", "run-2/greet", "run-1/addNumbers", "run-1/greet"}, ids(all))

	failed, err := s.FindOutcomes(ctx, query.Equals{Field: "state", Value: ir.IRString("failed")}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2/addNumbers", "run-1/greet"}, ids(failed))

	p, err := query.Parse([]string{"forced=true", "spec_id=greet"})
	require.NoError(t, err)
	forcedGreet, err := s.FindOutcomes(ctx, p, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2/greet"}, ids(forcedGreet))

	_, err = s.FindOutcomes(ctx, query.Equals{Field: "duration_ms", Value: ir.IRString("1")}, 0)
	require.Error(t, err)
}

func TestWriteReportCanceled(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WriteReport(ctx, testReport("run-1", testutil.Epoch))
	require.Error(t, err)
}
