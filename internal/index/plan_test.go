package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
)

func TestResolvePhases(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want Phases
	}{
		{"no switches runs both", Selection{}, Phases{Boundaries: true, Ranks: true}},
		{"boundaries only", Selection{BoundariesOnly: true}, Phases{Boundaries: true}},
		{"ranks only", Selection{RanksOnly: true}, Phases{Ranks: true}},
		{"both switches run both", Selection{BoundariesOnly: true, RanksOnly: true}, Phases{Boundaries: true, Ranks: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePhases(tt.sel))
		})
	}
}

func TestPhases_String(t *testing.T) {
	assert.Equal(t, "boundaries+ranks", Phases{Boundaries: true, Ranks: true}.String())
	assert.Equal(t, "boundaries", Phases{Boundaries: true}.String())
	assert.Equal(t, "ranks", Phases{Ranks: true}.String())
	assert.Equal(t, "none", Phases{}.String())
}

func TestPartition_NoPhaseIsInvalidConfiguration(t *testing.T) {
	plan, err := Partition(scenario(), Phases{}, testOptions(4))

	require.Error(t, err)
	assert.Nil(t, plan)
	assert.True(t, geoerrors.IsInvalidConfiguration(err))
}

func TestPartition_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts PlanOptions
	}{
		{"zero workers", PlanOptions{Workers: 0, MaxRank: 30, BoundaryMaxRank: 25}},
		{"inverted rank window", PlanOptions{Workers: 1, MinRank: 20, MaxRank: 10, BoundaryMaxRank: 25}},
		{"inverted boundary window", PlanOptions{Workers: 1, MaxRank: 30, BoundaryMinRank: 20, BoundaryMaxRank: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(scenario(), Phases{Ranks: true}, tt.opts)
			assert.True(t, geoerrors.IsInvalidConfiguration(err))
		})
	}
}

func TestPartition_SplitsPhasesAndOrdersRanks(t *testing.T) {
	// Given: the scenario shuffled, plus an already indexed record
	records := scenario()
	records[0], records[4] = records[4], records[0]
	records = append(records, store.Record{ID: 30, Rank: 0, Indexed: true})

	// When: planning both phases
	plan, err := Partition(records, Phases{Boundaries: true, Ranks: true}, testOptions(2))
	require.NoError(t, err)

	// Then: boundaries and ranks are separate and ascending
	require.Len(t, plan.Boundaries, 2)
	assert.Equal(t, 8, plan.Boundaries[0].Rank)
	assert.Equal(t, 12, plan.Boundaries[1].Rank)
	assert.True(t, plan.Boundaries[0].Boundary)

	require.Len(t, plan.Ranks, 2)
	assert.Equal(t, 0, plan.Ranks[0].Rank)
	assert.Equal(t, 1, plan.Ranks[1].Rank)
	assert.False(t, plan.Ranks[1].Boundary)

	// Rank 1 has two records and two workers, so two batches of one.
	require.Len(t, plan.Ranks[1].Batches, 2)
	assert.Equal(t, int64(20), plan.Ranks[1].Batches[0][0].ID)
	assert.Equal(t, int64(21), plan.Ranks[1].Batches[1][0].ID)

	assert.Equal(t, 2, plan.BoundaryCount())
	assert.Equal(t, 3, plan.RankCount())
	assert.Equal(t, 5, plan.Total())
	assert.Equal(t, 1, plan.Skipped)
}

func TestPartition_SinglePhase(t *testing.T) {
	ranksOnly, err := Partition(scenario(), Phases{Ranks: true}, testOptions(4))
	require.NoError(t, err)
	assert.Empty(t, ranksOnly.Boundaries)
	assert.Equal(t, 3, ranksOnly.RankCount())
	assert.Equal(t, 2, ranksOnly.Skipped)

	boundariesOnly, err := Partition(scenario(), Phases{Boundaries: true}, testOptions(4))
	require.NoError(t, err)
	assert.Empty(t, boundariesOnly.Ranks)
	assert.Equal(t, 2, boundariesOnly.BoundaryCount())
}

func TestPartition_RankWindows(t *testing.T) {
	records := []store.Record{
		{ID: 1, Rank: 2, Boundary: true},  // below both windows
		{ID: 2, Rank: 16, Boundary: true}, // boundary window
		{ID: 3, Rank: 26, Boundary: true}, // above boundary window, inside rank window
		{ID: 4, Rank: 4},                  // below rank window
		{ID: 5, Rank: 26},                 // rank window
		{ID: 6, Rank: 30},                 // above
	}
	opts := testOptions(1)
	opts.MinRank, opts.MaxRank = 5, 29

	plan, err := Partition(records, Phases{Boundaries: true, Ranks: true}, opts)
	require.NoError(t, err)

	require.Len(t, plan.Boundaries, 1)
	assert.Equal(t, 16, plan.Boundaries[0].Rank)
	require.Len(t, plan.Ranks, 1)
	assert.Equal(t, 26, plan.Ranks[0].Rank)
	require.Len(t, plan.Ranks[0].Batches, 1)
	assert.Equal(t, []int64{3, 5}, []int64{plan.Ranks[0].Batches[0][0].ID, plan.Ranks[0].Batches[0][1].ID})
	assert.Equal(t, 3, plan.Skipped)
}

func TestPartition_BoundaryOutsideWindowJoinsRankPhase(t *testing.T) {
	records := []store.Record{
		{ID: 1, Rank: 2, Boundary: true},
		{ID: 2, Rank: 8, Boundary: true},
		{ID: 3, Rank: 30, Boundary: true},
		{ID: 4, Rank: 30},
	}

	tests := []struct {
		name       string
		phases     Phases
		boundaries []int
		ranks      []int
		skipped    int
	}{
		{"both phases", Phases{Boundaries: true, Ranks: true}, []int{8}, []int{2, 30}, 0},
		{"boundaries only", Phases{Boundaries: true}, []int{8}, nil, 3},
		{"ranks only", Phases{Ranks: true}, nil, []int{2, 30}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Partition(records, tt.phases, testOptions(2))
			require.NoError(t, err)

			var boundaries, ranks []int
			for _, g := range plan.Boundaries {
				boundaries = append(boundaries, g.Rank)
			}
			for _, g := range plan.Ranks {
				assert.False(t, g.Boundary)
				ranks = append(ranks, g.Rank)
			}
			assert.Equal(t, tt.boundaries, boundaries)
			assert.Equal(t, tt.ranks, ranks)
			assert.Equal(t, tt.skipped, plan.Skipped)
		})
	}
}

func TestPartition_BatchSizes(t *testing.T) {
	tests := []struct {
		name    string
		records int
		workers int
		want    []int
	}{
		{"uneven split", 10, 4, []int{3, 3, 3, 1}},
		{"more workers than records", 3, 8, []int{1, 1, 1}},
		{"single record", 1, 4, []int{1}},
		{"single worker", 5, 1, []int{5}},
		{"exact split", 8, 4, []int{2, 2, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Partition(layered([]int{26}, tt.records), Phases{Ranks: true}, testOptions(tt.workers))
			require.NoError(t, err)
			require.Len(t, plan.Ranks, 1)

			var sizes []int
			var prev int64
			for _, b := range plan.Ranks[0].Batches {
				sizes = append(sizes, len(b))
				for _, rec := range b {
					assert.Greater(t, rec.ID, prev, "records follow id order")
					prev = rec.ID
				}
			}
			assert.Equal(t, tt.want, sizes)
			assert.LessOrEqual(t, len(sizes), tt.workers)
		})
	}
}

func TestPartition_EmptyInputIsNoWork(t *testing.T) {
	plan, err := Partition(nil, Phases{Boundaries: true, Ranks: true}, testOptions(4))

	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 0, plan.Total())
}

func TestPlanOptions_Scope(t *testing.T) {
	scope := testOptions(2).Scope(Phases{Ranks: true})

	assert.Equal(t, store.Scope{
		Boundaries:      false,
		BoundaryMinRank: 4,
		BoundaryMaxRank: 25,
		Ranks:           true,
		MinRank:         0,
		MaxRank:         30,
	}, scope)
}
