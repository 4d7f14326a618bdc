package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
)

const recordColumns = `place_id, rank_search, rank_address, is_boundary, indexed,
	name, class, type, centroid_lon, centroid_lat,
	min_lon, min_lat, max_lon, max_lat,
	COALESCE(parent_place_id, 0), COALESCE(address, ''), indexed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r         Record
		indexedAt sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Rank, &r.AddressRank, &r.Boundary, &r.Indexed,
		&r.Name, &r.Class, &r.Type, &r.Centroid.Lon, &r.Centroid.Lat,
		&r.BBox.MinLon, &r.BBox.MinLat, &r.BBox.MaxLon, &r.BBox.MaxLat,
		&r.ParentID, &r.Address, &indexedAt)
	if err != nil {
		return nil, err
	}
	r.IndexedAt = fromUnixMilli(indexedAt)
	return &r, nil
}

// ListRecords returns records matching filter ordered by rank then id.
func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Rank != nil {
		where = append(where, "rank_search = ?")
		args = append(args, *filter.Rank)
	}
	if filter.BoundaryOnly {
		where = append(where, "is_boundary = 1")
	}
	if filter.PendingOnly {
		where = append(where, "indexed = 0")
	}

	query := "SELECT " + recordColumns + " FROM places"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rank_search, place_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list records", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("scan record", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list records", err)
	}
	return records, nil
}

// GetRecord returns one record by id.
func (s *SQLiteStore) GetRecord(ctx context.Context, id int64) (*Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM places WHERE place_id = ?", id)
	r, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, geoerrors.New(geoerrors.ErrCodeRecordNotFound,
			fmt.Sprintf("place %d not found", id), err)
	}
	if err != nil {
		return nil, unavailable("get record", err)
	}
	return r, nil
}

// InsertRecords upserts records. It loads fixtures and small extracts;
// bulk import belongs to the import tooling.
func (s *SQLiteStore) InsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.checkWritable(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO places (place_id, rank_search, rank_address, is_boundary, indexed,
			name, class, type, centroid_lon, centroid_lat,
			min_lon, min_lat, max_lon, max_lat, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			rank_search = excluded.rank_search,
			rank_address = excluded.rank_address,
			is_boundary = excluded.is_boundary,
			indexed = excluded.indexed,
			name = excluded.name,
			class = excluded.class,
			type = excluded.type,
			centroid_lon = excluded.centroid_lon,
			centroid_lat = excluded.centroid_lat,
			min_lon = excluded.min_lon,
			min_lat = excluded.min_lat,
			max_lon = excluded.max_lon,
			max_lat = excluded.max_lat,
			indexed_at = excluded.indexed_at
	`)
	if err != nil {
		return unavailable("prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var indexedAt any
		if r.Indexed {
			at := r.IndexedAt
			if at.IsZero() {
				at = s.now()
			}
			indexedAt = unixMilli(at)
		}
		_, err := stmt.ExecContext(ctx, r.ID, r.Rank, r.AddressRank, boolToInt(r.Boundary), boolToInt(r.Indexed),
			r.Name, r.Class, r.Type, r.Centroid.Lon, r.Centroid.Lat,
			r.BBox.MinLon, r.BBox.MinLat, r.BBox.MaxLon, r.BBox.MaxLat, indexedAt)
		if err != nil {
			return unavailable(fmt.Sprintf("insert place %d", r.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// FindContainingBoundary returns the smallest indexed boundary, other than
// rec itself, whose box contains rec's centroid and whose address rank is
// lower than rec's. Returns nil and no error when none exists.
func (s *SQLiteStore) FindContainingBoundary(ctx context.Context, rec Record) (*Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM places
		WHERE is_boundary = 1 AND indexed = 1
		  AND place_id != ?
		  AND rank_address < ?
		  AND min_lon <= ? AND max_lon >= ?
		  AND min_lat <= ? AND max_lat >= ?
		ORDER BY (max_lon - min_lon) * (max_lat - min_lat) ASC, rank_address DESC, place_id
		LIMIT 1
	`, rec.ID, rec.AddressRank,
		rec.Centroid.Lon, rec.Centroid.Lon,
		rec.Centroid.Lat, rec.Centroid.Lat)

	parent, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find containing boundary", err)
	}
	return parent, nil
}

// SaveAddress stores the computed parent and address for a place.
func (s *SQLiteStore) SaveAddress(ctx context.Context, id, parentID int64, address string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}

	var parent any
	if parentID != 0 {
		parent = parentID
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE places SET parent_place_id = ?, address = ? WHERE place_id = ?`, parent, address, id)
	if err != nil {
		return unavailable("save address", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return geoerrors.New(geoerrors.ErrCodeRecordNotFound, fmt.Sprintf("place %d not found", id), nil)
	}
	return nil
}

// CountPending counts unindexed records inside scope.
func (s *SQLiteStore) CountPending(ctx context.Context, scope Scope) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return countPending(ctx, s.db, scope)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countPending(ctx context.Context, q queryer, scope Scope) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM places
		WHERE indexed = 0 AND (
			(? AND is_boundary = 1 AND rank_search BETWEEN ? AND ?)
			OR (? AND rank_search BETWEEN ? AND ?
				AND (is_boundary = 0 OR rank_search NOT BETWEEN ? AND ?))
		)
	`, boolToInt(scope.Boundaries), scope.BoundaryMinRank, scope.BoundaryMaxRank,
		boolToInt(scope.Ranks), scope.MinRank, scope.MaxRank,
		scope.BoundaryMinRank, scope.BoundaryMaxRank).Scan(&n)
	if err != nil {
		return 0, unavailable("count pending", err)
	}
	return n, nil
}

// CountAllPending counts every unindexed record regardless of rank or kind.
func (s *SQLiteStore) CountAllPending(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places WHERE indexed = 0`).Scan(&n); err != nil {
		return 0, unavailable("count pending", err)
	}
	return n, nil
}

// RankCounts returns total and pending counts per rank and kind.
func (s *SQLiteStore) RankCounts(ctx context.Context) ([]RankCount, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rank_search, is_boundary, COUNT(*), SUM(CASE WHEN indexed = 0 THEN 1 ELSE 0 END)
		FROM places
		GROUP BY rank_search, is_boundary
		ORDER BY is_boundary DESC, rank_search
	`)
	if err != nil {
		return nil, unavailable("rank counts", err)
	}
	defer rows.Close()

	var counts []RankCount
	for rows.Next() {
		var c RankCount
		if err := rows.Scan(&c.Rank, &c.Boundary, &c.Total, &c.Pending); err != nil {
			return nil, unavailable("scan rank counts", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rank counts", err)
	}
	return counts, nil
}
