package store

import (
	"context"
	"fmt"
	"strings"
)

// RecordFailure upserts the failure row for a record, bumping attempts.
func (s *SQLiteStore) RecordFailure(ctx context.Context, f Failure) error {
	if err := s.checkWritable(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_failures (place_id, kind, message, attempts, last_seen)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			kind = excluded.kind,
			message = excluded.message,
			attempts = attempts + 1,
			last_seen = excluded.last_seen
	`, f.PlaceID, string(f.Kind), f.Message, unixMilli(s.now()))
	if err != nil {
		return unavailable(fmt.Sprintf("record failure for place %d", f.PlaceID), err)
	}
	return nil
}

// ListFailures returns failure rows ordered by place id.
func (s *SQLiteStore) ListFailures(ctx context.Context, filter FailureFilter) ([]Failure, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT place_id, kind, message, attempts, last_seen FROM index_failures`)
	if filter.Kind != "" {
		sb.WriteString(` WHERE kind = ?`)
		args = append(args, string(filter.Kind))
	}
	sb.WriteString(` ORDER BY place_id`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, unavailable("list failures", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			f        Failure
			kind     string
			lastSeen int64
		)
		if err := rows.Scan(&f.PlaceID, &kind, &f.Message, &f.Attempts, &lastSeen); err != nil {
			return nil, unavailable("scan failure", err)
		}
		f.Kind = FailureKind(kind)
		f.LastSeen = fromUnixMilliInt(lastSeen)
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list failures", err)
	}
	return failures, nil
}

// CountFailures returns failure counts per kind.
func (s *SQLiteStore) CountFailures(ctx context.Context) (map[FailureKind]int, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM index_failures GROUP BY kind`)
	if err != nil {
		return nil, unavailable("count failures", err)
	}
	defer rows.Close()

	counts := make(map[FailureKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, unavailable("scan failure count", err)
		}
		counts[FailureKind(kind)] = n
	}
	return counts, rows.Err()
}
