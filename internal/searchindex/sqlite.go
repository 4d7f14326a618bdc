package searchindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteIndex implements Index using SQLite FTS5.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	tok    tokenizer
	closed bool
}

var _ Index = (*SQLiteIndex)(nil)

// validateSQLiteIntegrity returns nil for a missing file or a healthy index.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
	                   WHERE type='table' AND name='fts_places'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_places' missing")
	}
	return nil
}

// NewSQLiteIndex opens or creates an FTS5 index at path.
// An empty path creates an in-memory index. A corrupted file is removed
// and recreated empty; the affected places are re-tokenized on the next
// run that indexes them.
func NewSQLiteIndex(path string, cfg Config) (*SQLiteIndex, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("search_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("search index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("search_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN params, so pragmas go through Exec.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteIndex{db: db, path: path, tok: newTokenizer(cfg)}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	// Content is stored pre-tokenized, so unicode61 only has to split on spaces.
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_places USING fts5(
		place_id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS place_docs (
		place_id INTEGER PRIMARY KEY
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put adds or replaces documents in one transaction.
func (s *SQLiteIndex) Put(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 tables have no REPLACE, so delete first.
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_places WHERE place_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_places(place_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO place_docs(place_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ID statement: %w", err)
	}
	defer idStmt.Close()

	for _, doc := range docs {
		content := strings.Join(s.tok.tokens(doc.Content()), " ")

		if _, err := deleteStmt.ExecContext(ctx, doc.PlaceID); err != nil {
			return fmt.Errorf("failed to delete existing document %d: %w", doc.PlaceID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.PlaceID, content); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.PlaceID, err)
		}
		if _, err := idStmt.ExecContext(ctx, doc.PlaceID); err != nil {
			return fmt.Errorf("failed to track document %d: %w", doc.PlaceID, err)
		}
	}

	return tx.Commit()
}

// Delete removes documents by place id.
func (s *SQLiteIndex) Delete(ctx context.Context, placeIDs []int64) error {
	if len(placeIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(placeIDs))
	args := make([]any, len(placeIDs))
	for i, id := range placeIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM fts_places WHERE place_id IN (%s)", in), args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM place_docs WHERE place_id IN (%s)", in), args...); err != nil {
		return fmt.Errorf("failed to delete from place_docs: %w", err)
	}
	return tx.Commit()
}

// Stats returns index statistics.
func (s *SQLiteIndex) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM place_docs`).Scan(&count); err != nil {
		return Stats{}
	}
	return Stats{DocumentCount: count}
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
