package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/specforge/internal/engine"
	"github.com/roach88/specforge/internal/ir"
	"github.com/roach88/specforge/internal/query"
)

// Run is one row of build history.
type Run struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Force    bool          `json:"force"`
	Counts   engine.Counts `json:"counts"`
	Pruned   []string      `json:"pruned"`
}

// SpecEntry is one spec's outcome in a particular run.
type SpecEntry struct {
	RunID   string         `json:"run_id"`
	Started time.Time      `json:"started"`
	Outcome engine.Outcome `json:"outcome"`
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, forced, published, skipped, failed, pruned
		FROM runs
		ORDER BY started_at DESC, run_id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run. The bool is false if the run does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, forced, published, skipped, failed, pruned
		FROM runs
		WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

// RunOutcomes returns the outcomes of a run in processing order.
// Err is not restored; Error carries the message.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]engine.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spec_id, state, reason, hash, source_hash, error, generator_called, duration_ms
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []engine.Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// SpecHistory returns up to limit outcomes for one spec, newest run first.
func (s *Store) SpecHistory(ctx context.Context, specID string, limit int) ([]SpecEntry, error) {
	return s.FindOutcomes(ctx, query.Equals{Field: "spec_id", Value: ir.IRString(specID)}, limit)
}

// FindOutcomes returns up to limit outcomes matching p, newest run first
// and in processing order within a run. A nil p matches every outcome; a
// non-positive limit returns all matches.
func (s *Store) FindOutcomes(ctx context.Context, p query.Predicate, limit int) ([]SpecEntry, error) {
	where, params, err := query.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.started_at,
		       o.spec_id, o.state, o.reason, o.hash, o.source_hash, o.error, o.generator_called, o.duration_ms
		FROM outcomes o
		JOIN runs r ON o.run_id = r.run_id
		WHERE `+where+`
		ORDER BY `+query.OrderBy+`
		LIMIT ?
	`, append(params, limit)...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	entries := []SpecEntry{}
	for rows.Next() {
		var (
			e       SpecEntry
			started string
			called  bool
			ms      int64
			state   string
		)
		if err := rows.Scan(&e.RunID, &started,
			&e.Outcome.SpecID, &state, &e.Outcome.Reason, &e.Outcome.Hash,
			&e.Outcome.SourceHash, &e.Outcome.Error, &called, &ms); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if e.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		e.Outcome.State = engine.State(state)
		e.Outcome.GeneratorCalled = called
		e.Outcome.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run                     Run
		started, finished, prun string
	)
	err := row.Scan(&run.RunID, &started, &finished, &run.Force,
		&run.Counts.Published, &run.Counts.Skipped, &run.Counts.Failed, &prun)
	if err == sql.ErrNoRows {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("scan run: %w", err)
	}
	if run.Started, err = parseTime(started); err != nil {
		return run, err
	}
	if run.Finished, err = parseTime(finished); err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(prun), &run.Pruned); err != nil {
		return run, fmt.Errorf("scan run %s: pruned: %w", run.RunID, err)
	}
	return run, nil
}

func scanOutcome(row scanner) (engine.Outcome, error) {
	var (
		o      engine.Outcome
		state  string
		called bool
		ms     int64
	)
	if err := row.Scan(&o.SpecID, &state, &o.Reason, &o.Hash, &o.SourceHash, &o.Error, &called, &ms); err != nil {
		return o, fmt.Errorf("scan outcome: %w", err)
	}
	o.State = engine.State(state)
	o.GeneratorCalled = called
	o.Duration = time.Duration(ms) * time.Millisecond
	return o, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
