// Package store persists places and their indexing state in SQLite.
//
// The places table carries one row per record with its ranks, boundary flag
// and per-record indexed flag. import_status holds the single run-level
// flag read by external tools. index_failures and index_runs record what
// the scheduler could not finish and how each run ended.
package store

import (
	"context"
	"time"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Contains reports whether p lies inside or on the edge of b.
func (b BBox) Contains(p Point) bool {
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon &&
		p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// Area returns the box area in square degrees.
func (b BBox) Area() float64 {
	return (b.MaxLon - b.MinLon) * (b.MaxLat - b.MinLat)
}

// Record is one place awaiting or holding derived index data.
// Lower Rank is more significant; boundaries are indexed in their own phase.
type Record struct {
	ID          int64
	Rank        int // rank_search
	AddressRank int // rank_address
	Boundary    bool
	Indexed     bool

	Name     string
	Class    string
	Type     string
	Centroid Point
	BBox     BBox

	// Set by the compute step.
	ParentID  int64
	Address   string
	IndexedAt time.Time
}

// RecordFilter narrows ListRecords. The zero value lists every record.
type RecordFilter struct {
	// Rank limits results to one rank_search value.
	Rank *int
	// BoundaryOnly limits results to boundary records.
	BoundaryOnly bool
	// PendingOnly limits results to records with indexed = false.
	PendingOnly bool
}

// Scope describes the records a run was responsible for.
// A disabled phase contributes nothing to the scope. The boundary window
// splits boundary records between the phases: inside it they belong to the
// boundary phase, outside it to the rank phase.
type Scope struct {
	Boundaries      bool
	BoundaryMinRank int
	BoundaryMaxRank int

	Ranks   bool
	MinRank int
	MaxRank int
}

// FailureKind classifies a recorded per-record failure.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// Failure is the latest failed attempt for one record.
type Failure struct {
	PlaceID  int64
	Kind     FailureKind
	Message  string
	Attempts int
	LastSeen time.Time
}

// FailureFilter narrows ListFailures. Empty Kind lists every kind.
type FailureFilter struct {
	Kind  FailureKind
	Limit int
}

// Run is one row of index_runs.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Phases     string
	Attempted  int
	Succeeded  int
	Failed     int
	Complete   bool
	Cancelled  bool
}

// Finished reports whether the run reached FinishRun.
func (r *Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// RankCount summarises indexing progress for one rank.
type RankCount struct {
	Rank     int
	Boundary bool
	Total    int
	Pending  int
}

// RecordSource enumerates records for the partitioner.
type RecordSource interface {
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
}

// CompletionStore persists per-record and per-run completion.
//
// MarkIndexed is idempotent. MarkRunComplete sets the run-level flag only
// when nothing in scope is still pending and reports whether it did.
type CompletionStore interface {
	MarkIndexed(ctx context.Context, id int64) error
	IsIndexed(ctx context.Context, id int64) (bool, error)
	MarkRunComplete(ctx context.Context, scope Scope) (bool, error)
	MarkRunIncomplete(ctx context.Context) error
	IsRunComplete(ctx context.Context) (bool, error)
	RecordFailure(ctx context.Context, f Failure) error
}

// RunLog records the lifecycle of index runs. Checkpoint is called once a
// successful run has been recorded.
type RunLog interface {
	BeginRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	Checkpoint(ctx context.Context) error
}

// PlaceStore is what the in-process compute provider needs.
type PlaceStore interface {
	FindContainingBoundary(ctx context.Context, rec Record) (*Record, error)
	GetRecord(ctx context.Context, id int64) (*Record, error)
	SaveAddress(ctx context.Context, id, parentID int64, address string) error
}
