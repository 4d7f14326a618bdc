// Package searchindex stores the search tokens computed for each place.
//
// Two backends are available: SQLite FTS5 (default, multi-process safe via
// WAL) and Bleve (single process, BoltDB lock). Both tokenize place names
// and addresses the same way, so a query hits the same documents on either.
package searchindex

import (
	"context"
	"strconv"
	"strings"
)

// Document is the searchable text of one place.
type Document struct {
	PlaceID int64
	Name    string
	// Address lists the names of the containing places, nearest first.
	Address []string
}

// Content joins name and address into the text that gets tokenized.
func (d Document) Content() string {
	parts := make([]string, 0, len(d.Address)+1)
	if d.Name != "" {
		parts = append(parts, d.Name)
	}
	parts = append(parts, d.Address...)
	return strings.Join(parts, " ")
}

func (d Document) key() string {
	return strconv.FormatInt(d.PlaceID, 10)
}

// Stats contains index statistics.
type Stats struct {
	DocumentCount int
}

// Index is the write side of a keyword index over place documents. Queries
// belong to the geocoder's API layer, which opens the same files.
// Implementations must be safe for concurrent use.
type Index interface {
	// Put adds or replaces documents.
	Put(ctx context.Context, docs []Document) error

	// Delete removes documents by place id.
	Delete(ctx context.Context, placeIDs []int64) error

	// Stats returns index statistics.
	Stats() Stats

	// Close releases resources. Safe to call more than once.
	Close() error
}

// Config configures tokenization.
type Config struct {
	// StopWords are dropped from documents and queries.
	StopWords []string

	// MinTokenLength drops shorter tokens (in runes).
	MinTokenLength int
}

// DefaultConfig returns the default tokenization settings.
func DefaultConfig() Config {
	return Config{
		StopWords:      DefaultStopWords,
		MinTokenLength: 1,
	}
}

// DefaultStopWords are connectives common in place names across languages.
var DefaultStopWords = []string{
	"the", "of", "and",
	"de", "la", "le", "les", "du", "des",
	"der", "die", "das", "am", "im",
	"del", "el", "y",
}
