package searchindex

import (
	"fmt"
	"os"
)

// Backend names a search index implementation.
type Backend string

const (
	// BackendSQLite uses SQLite FTS5 (default).
	BackendSQLite Backend = "sqlite"

	// BackendBleve uses Bleve v2. Only one process may open it at a time.
	BackendBleve Backend = "bleve"
)

// Open opens the index at path with the given backend.
// An empty backend selects SQLite. An empty path opens an in-memory index.
func Open(path string, backend Backend, cfg Config) (Index, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteIndex(path, cfg)
	case BackendBleve:
		return NewBleveIndex(path, cfg)
	default:
		return nil, fmt.Errorf("unknown search index backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// Detect reports which backend created the index at path, or "" if none.
func Detect(path string) Backend {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return ""
	case info.IsDir():
		return BackendBleve
	default:
		return BackendSQLite
	}
}
