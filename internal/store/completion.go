package store

import (
	"context"
	"fmt"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
)

// MarkIndexed sets indexed = true for id and clears any failure row.
// Marking an already indexed record keeps its original indexed_at.
func (s *SQLiteStore) MarkIndexed(ctx context.Context, id int64) error {
	if err := s.checkWritable(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE places SET indexed = 1, indexed_at = COALESCE(indexed_at, ?) WHERE place_id = ?`,
		unixMilli(s.now()), id)
	if err != nil {
		return unavailable("mark indexed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return geoerrors.New(geoerrors.ErrCodeRecordNotFound, fmt.Sprintf("place %d not found", id), nil)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_failures WHERE place_id = ?`, id); err != nil {
		return unavailable("clear failure", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// IsIndexed reports the indexed flag of id.
func (s *SQLiteStore) IsIndexed(ctx context.Context, id int64) (bool, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.Indexed, nil
}

// MarkRunComplete sets the run-level flag if no record in scope is pending.
// The count and the update share one transaction.
func (s *SQLiteStore) MarkRunComplete(ctx context.Context, scope Scope) (bool, error) {
	if err := s.checkWritable(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	pending, err := countPending(ctx, tx, scope)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE import_status SET indexed = 1`); err != nil {
		return false, unavailable("set run flag", err)
	}
	if err := tx.Commit(); err != nil {
		return false, unavailable("commit", err)
	}
	return true, nil
}

// MarkRunIncomplete clears the run-level flag.
func (s *SQLiteStore) MarkRunIncomplete(ctx context.Context) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE import_status SET indexed = 0`); err != nil {
		return unavailable("clear run flag", err)
	}
	return nil
}

// IsRunComplete reads the run-level flag.
func (s *SQLiteStore) IsRunComplete(ctx context.Context) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}

	var indexed bool
	if err := s.db.QueryRowContext(ctx, `SELECT indexed FROM import_status LIMIT 1`).Scan(&indexed); err != nil {
		return false, unavailable("read run flag", err)
	}
	return indexed, nil
}
