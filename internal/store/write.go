package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/specforge/internal/engine"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds so stored timestamps
// sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// WriteReport appends a build report to the history.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same run twice
// is silently ignored.
func (s *Store) WriteReport(ctx context.Context, r *engine.Report) error {
	pruned := r.Pruned
	if pruned == nil {
		pruned = []string{}
	}
	prunedJSON, err := json.Marshal(pruned)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	c := r.Counts()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, started_at, finished_at, forced, published, skipped, failed, pruned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		r.RunID,
		formatTime(r.Started),
		formatTime(r.Finished),
		r.Force,
		c.Published,
		c.Skipped,
		c.Failed,
		string(prunedJSON),
	)
	if err != nil {
		return fmt.Errorf("write report: insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for i, o := range r.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes
			(run_id, seq, spec_id, state, reason, hash, source_hash, error, generator_called, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.RunID,
			i,
			o.SpecID,
			string(o.State),
			o.Reason,
			o.Hash,
			o.SourceHash,
			o.Error,
			o.GeneratorCalled,
			o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("write report: insert outcome %s: %w", o.SpecID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}
