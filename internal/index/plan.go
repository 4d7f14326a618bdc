package index

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/Aman-CERP/geoidx/internal/config"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// PlanOptions bounds the work a plan contains.
type PlanOptions struct {
	// Workers is the pool size batches are sized for.
	Workers int

	// MinRank and MaxRank bound the rank phase (inclusive).
	MinRank int
	MaxRank int

	// BoundaryMinRank and BoundaryMaxRank bound the boundary phase (inclusive).
	// Boundaries ranked outside this window are indexed by the rank phase.
	BoundaryMinRank int
	BoundaryMaxRank int
}

// DefaultPlanOptions returns options matching the default configuration.
func DefaultPlanOptions() PlanOptions {
	return PlanOptions{
		Workers:         runtime.NumCPU(),
		MinRank:         config.MinSearchRank,
		MaxRank:         config.MaxSearchRank,
		BoundaryMinRank: 4,
		BoundaryMaxRank: 25,
	}
}

// PlanOptionsFromConfig reads the indexer section of cfg.
func PlanOptionsFromConfig(cfg *config.Config) PlanOptions {
	ix := cfg.Indexer
	return PlanOptions{
		Workers:         ix.Threads,
		MinRank:         ix.MinRank,
		MaxRank:         ix.MaxRank,
		BoundaryMinRank: ix.BoundaryMinRank,
		BoundaryMaxRank: ix.BoundaryMaxRank,
	}
}

// Scope returns the completion scope of a run over phases.
func (o PlanOptions) Scope(phases Phases) store.Scope {
	return store.Scope{
		Boundaries:      phases.Boundaries,
		BoundaryMinRank: o.BoundaryMinRank,
		BoundaryMaxRank: o.BoundaryMaxRank,
		Ranks:           phases.Ranks,
		MinRank:         o.MinRank,
		MaxRank:         o.MaxRank,
	}
}

func (o PlanOptions) inBoundaryWindow(rank int) bool {
	return rank >= o.BoundaryMinRank && rank <= o.BoundaryMaxRank
}

func (o PlanOptions) validate() error {
	if o.Workers < 1 {
		return geoerrors.InvalidConfiguration(fmt.Sprintf("worker count must be at least 1, got %d", o.Workers), nil)
	}
	if o.MinRank > o.MaxRank {
		return geoerrors.InvalidConfiguration(fmt.Sprintf("min rank %d exceeds max rank %d", o.MinRank, o.MaxRank), nil)
	}
	if o.BoundaryMinRank > o.BoundaryMaxRank {
		return geoerrors.InvalidConfiguration(
			fmt.Sprintf("boundary min rank %d exceeds boundary max rank %d", o.BoundaryMinRank, o.BoundaryMaxRank), nil)
	}
	return nil
}

// Batch is the unit handed to one worker.
type Batch []store.Record

// Group is every pending record of one rank within one phase. Boundary
// reports the phase, so a rank phase group may still hold boundary records.
type Group struct {
	Rank     int
	Boundary bool
	Batches  []Batch
	Size     int
}

// Plan is the ordered work of one run.
type Plan struct {
	Phases     Phases
	Boundaries []Group
	Ranks      []Group

	// Skipped counts records already indexed or outside the selected windows.
	Skipped int
}

// BoundaryCount is the number of records in the boundary phase.
func (p *Plan) BoundaryCount() int {
	return groupsSize(p.Boundaries)
}

// RankCount is the number of records in the rank phase.
func (p *Plan) RankCount() int {
	return groupsSize(p.Ranks)
}

// Total is the number of records the plan will attempt.
func (p *Plan) Total() int {
	return p.BoundaryCount() + p.RankCount()
}

// Empty reports whether the plan has no work.
func (p *Plan) Empty() bool {
	return len(p.Boundaries) == 0 && len(p.Ranks) == 0
}

func groupsSize(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += g.Size
	}
	return n
}

// Partition builds the plan for records.
//
// Boundary records inside the boundary window only ever land in the
// boundary phase. Every other record, including a boundary ranked outside
// that window, belongs to the rank phase. Indexed records are skipped, which
// is what makes an interrupted run resumable. Groups are ordered by ascending rank and
// split into batches of ceil(n/workers) records ordered by id.
func Partition(records []store.Record, phases Phases, opts PlanOptions) (*Plan, error) {
	if !phases.Any() {
		return nil, geoerrors.InvalidConfiguration("no indexing phase selected", nil).
			WithSuggestion("Select boundaries, ranks, or omit both switches to run everything")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	plan := &Plan{Phases: phases}
	boundaries := make(map[int][]store.Record)
	ranks := make(map[int][]store.Record)

	for _, rec := range records {
		switch {
		case rec.Indexed:
			plan.Skipped++
		case rec.Boundary && opts.inBoundaryWindow(rec.Rank):
			if !phases.Boundaries {
				plan.Skipped++
				continue
			}
			boundaries[rec.Rank] = append(boundaries[rec.Rank], rec)
		default:
			if !phases.Ranks || rec.Rank < opts.MinRank || rec.Rank > opts.MaxRank {
				plan.Skipped++
				continue
			}
			ranks[rec.Rank] = append(ranks[rec.Rank], rec)
		}
	}

	plan.Boundaries = buildGroups(boundaries, true, opts.Workers)
	plan.Ranks = buildGroups(ranks, false, opts.Workers)
	return plan, nil
}

func buildGroups(byRank map[int][]store.Record, boundary bool, workers int) []Group {
	if len(byRank) == 0 {
		return nil
	}

	rankValues := make([]int, 0, len(byRank))
	for r := range byRank {
		rankValues = append(rankValues, r)
	}
	sort.Ints(rankValues)

	groups := make([]Group, 0, len(rankValues))
	for _, r := range rankValues {
		members := byRank[r]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		groups = append(groups, Group{
			Rank:     r,
			Boundary: boundary,
			Batches:  splitBatches(members, workers),
			Size:     len(members),
		})
	}
	return groups
}

// splitBatches cuts records into at most workers batches of equal size,
// the last one possibly shorter.
func splitBatches(records []store.Record, workers int) []Batch {
	size := max((len(records)+workers-1)/workers, 1)

	batches := make([]Batch, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, Batch(records[start:end]))
	}
	return batches
}
