package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"
)

// BeginRun inserts a run row. StartedAt defaults to now.
func (s *SQLiteStore) BeginRun(ctx context.Context, run *Run) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_runs (run_id, started_at, phases) VALUES (?, ?, ?)`,
		run.ID, unixMilli(run.StartedAt), run.Phases)
	if err != nil {
		return unavailable("begin run", err)
	}
	return nil
}

// FinishRun stores the final counters of a run. FinishedAt defaults to now.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE index_runs SET finished_at = ?, attempted = ?, succeeded = ?, failed = ?,
			complete = ?, cancelled = ?
		WHERE run_id = ?
	`, unixMilli(run.FinishedAt), run.Attempted, run.Succeeded, run.Failed,
		boolToInt(run.Complete), boolToInt(run.Cancelled), run.ID)
	if err != nil {
		return unavailable("finish run", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil if none.
func (s *SQLiteStore) LastRun(ctx context.Context) (*Run, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, phases, attempted, succeeded, failed, complete, cancelled
		FROM index_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&r.ID, &started, &finished, &r.Phases, &r.Attempted, &r.Succeeded, &r.Failed, &r.Complete, &r.Cancelled)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("last run", err)
	}

	r.StartedAt = fromUnixMilliInt(started)
	r.FinishedAt = fromUnixMilli(finished)
	return &r, nil
}

func fromUnixMilliInt(v int64) time.Time {
	return fromUnixMilli(sql.NullInt64{Int64: v, Valid: true})
}
