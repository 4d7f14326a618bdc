package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
)

// Options tunes the SQLite connection.
type Options struct {
	// BusyTimeout is how long to wait on a locked database (default 5s).
	BusyTimeout time.Duration
	// CacheMB is the page cache size in MB (default 64).
	CacheMB int
}

// DefaultOptions returns the connection defaults.
func DefaultOptions() Options {
	return Options{BusyTimeout: 5 * time.Second, CacheMB: 64}
}

// SQLiteStore implements RecordSource, CompletionStore, RunLog and
// PlaceStore on one SQLite database.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	readOnly bool
	closed   bool
	now      func() time.Time
}

// Verify interface implementation at compile time
var (
	_ RecordSource    = (*SQLiteStore)(nil)
	_ CompletionStore = (*SQLiteStore)(nil)
	_ RunLog          = (*SQLiteStore)(nil)
	_ PlaceStore      = (*SQLiteStore)(nil)
)

// Open opens (creating if needed) the database at path and ensures the
// scheduler's tables exist. If path is empty, an in-memory database is used.
func Open(path string, opts Options) (*SQLiteStore, error) {
	opts = withDefaults(opts)

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, geoerrors.StorageUnavailable(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, geoerrors.StorageUnavailable("failed to open database", err)
	}

	// Single writer; workers serialise on the one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so set pragmas directly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, geoerrors.StorageUnavailable("failed to set pragma", err).WithDetail("pragma", pragma)
		}
	}

	s := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, geoerrors.StorageUnavailable("failed to initialize schema", err)
	}

	return s, nil
}

// OpenExisting opens an existing database without creating or altering
// anything. Used by read-only commands (status, failures, check-database).
func OpenExisting(path string, opts Options) (*SQLiteStore, error) {
	opts = withDefaults(opts)

	if _, err := os.Stat(path); err != nil {
		return nil, geoerrors.New(geoerrors.ErrCodeDatabaseNotFound,
			fmt.Sprintf("database not found: %s", path), err).
			WithSuggestion("Check database.path in .geoidx.yaml or pass --db")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, geoerrors.StorageUnavailable("failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	busy := fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds())
	if _, err := db.Exec(busy); err != nil {
		_ = db.Close()
		return nil, geoerrors.StorageUnavailable("failed to open database", err)
	}

	return &SQLiteStore{db: db, path: path, readOnly: true, now: time.Now}, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = def.BusyTimeout
	}
	if opts.CacheMB <= 0 {
		opts.CacheMB = def.CacheMB
	}
	return opts
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS places (
		place_id        INTEGER PRIMARY KEY,
		rank_search     INTEGER NOT NULL,
		rank_address    INTEGER NOT NULL DEFAULT 0,
		is_boundary     BOOLEAN NOT NULL DEFAULT 0,
		indexed         BOOLEAN NOT NULL DEFAULT 0,
		name            TEXT NOT NULL DEFAULT '',
		class           TEXT NOT NULL DEFAULT '',
		type            TEXT NOT NULL DEFAULT '',
		centroid_lon    REAL NOT NULL DEFAULT 0,
		centroid_lat    REAL NOT NULL DEFAULT 0,
		min_lon         REAL NOT NULL DEFAULT 0,
		min_lat         REAL NOT NULL DEFAULT 0,
		max_lon         REAL NOT NULL DEFAULT 0,
		max_lat         REAL NOT NULL DEFAULT 0,
		parent_place_id INTEGER,
		address         TEXT,
		indexed_at      INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_places_pending ON places(indexed, is_boundary, rank_search);
	CREATE INDEX IF NOT EXISTS idx_places_boundary_bbox ON places(is_boundary, min_lon, max_lon);

	-- Run-level flag read by external tools; exactly one row.
	CREATE TABLE IF NOT EXISTS import_status (
		indexed BOOLEAN NOT NULL DEFAULT 0
	);
	INSERT INTO import_status (indexed)
		SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM import_status);

	CREATE TABLE IF NOT EXISTS index_failures (
		place_id  INTEGER PRIMARY KEY,
		kind      TEXT NOT NULL,
		message   TEXT NOT NULL DEFAULT '',
		attempts  INTEGER NOT NULL DEFAULT 1,
		last_seen INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_index_failures_kind ON index_failures(kind);

	CREATE TABLE IF NOT EXISTS index_runs (
		run_id      TEXT PRIMARY KEY,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER,
		phases      TEXT NOT NULL,
		attempted   INTEGER NOT NULL DEFAULT 0,
		succeeded   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		complete    BOOLEAN NOT NULL DEFAULT 0,
		cancelled   BOOLEAN NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_index_runs_started ON index_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path ("" for in-memory).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping verifies the database answers queries.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// TableExists reports whether a table with the given name exists.
func (s *SQLiteStore) TableExists(ctx context.Context, name string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, unavailable("table lookup", err)
	}
	return count > 0, nil
}

// Checkpoint folds the WAL back into the main database file.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.readOnly {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return unavailable("checkpoint", err)
	}
	return nil
}

// Close closes the database. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.readOnly {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

func (s *SQLiteStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return geoerrors.StorageUnavailable("store is closed", nil)
	}
	return nil
}

func (s *SQLiteStore) checkWritable() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.readOnly {
		return geoerrors.StorageUnavailable("store was opened read-only", nil)
	}
	return nil
}

// unavailable wraps a database error as StorageUnavailable.
func unavailable(op string, err error) error {
	return geoerrors.StorageUnavailable(fmt.Sprintf("%s failed: %v", op, err), err).
		WithDetail("op", op)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}
