package ui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewProgressTracker(t *testing.T) {
	stats := NewProgressTracker().Stats()

	assert.Equal(t, StagePlanning, stats.Stage)
	assert.Equal(t, NoRank, stats.Rank)
	assert.Equal(t, 0, stats.Current)
	assert.Equal(t, 0, stats.Total)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	// Given: a tracker part way through a stage
	tracker := NewProgressTracker()
	tracker.SetStage(StageBoundaries, 10)
	tracker.Update(5, 8, "rank 8")

	// When: moving to the next stage
	tracker.SetStage(StageRanks, 100)

	// Then: counts and rank restart
	stats := tracker.Stats()
	assert.Equal(t, StageRanks, stats.Stage)
	assert.Equal(t, 100, stats.Total)
	assert.Equal(t, 0, stats.Current)
	assert.Equal(t, NoRank, stats.Rank)
	assert.Empty(t, stats.Label)
}

func TestProgressTracker_UpdateKeepsLabel(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageRanks, 100)

	tracker.Update(10, 26, "streets")
	tracker.Update(20, 26, "")

	stats := tracker.Stats()
	assert.Equal(t, 20, stats.Current)
	assert.Equal(t, 26, stats.Rank)
	assert.Equal(t, "streets", stats.Label)
}

func TestProgressTracker_Progress(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    float64
	}{
		{"zero total", 0, 0, 0.0},
		{"zero current", 0, 100, 0.0},
		{"half done", 50, 100, 0.5},
		{"done", 100, 100, 1.0},
		{"overshoot capped", 150, 100, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(StageRanks, tt.total)
			tracker.Update(tt.current, 30, "")
			assert.InDelta(t, tt.want, tracker.Progress(), 0.001)
		})
	}
}

func TestProgressTracker_ETA(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageRanks, 100)
	assert.Equal(t, time.Duration(0), tracker.ETA())

	time.Sleep(20 * time.Millisecond)
	tracker.Update(50, 30, "")
	assert.Greater(t, tracker.ETA(), time.Duration(0))

	tracker.Update(100, 30, "")
	assert.Equal(t, time.Duration(0), tracker.ETA())
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	tracker := NewProgressTracker()

	tracker.AddError(ErrorEvent{PlaceID: 1, Err: errors.New("permanent")})
	tracker.AddError(ErrorEvent{PlaceID: 2, Err: errors.New("transient"), IsWarn: true})
	tracker.AddError(ErrorEvent{PlaceID: 3, Err: errors.New("transient"), IsWarn: true})

	stats := tracker.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 2, stats.WarnCount)
	assert.Equal(t, int64(1), tracker.Errors()[0].PlaceID)
	assert.Len(t, tracker.Warnings(), 2)
}

func TestProgressTracker_ConcurrentUpdates(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageRanks, 1000)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				tracker.Update(n*100+j, 30, "")
				if j%10 == 0 {
					tracker.AddError(ErrorEvent{PlaceID: int64(j), IsWarn: true})
				}
				_ = tracker.Stats()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Stats().WarnCount)
}

func TestProgressTracker_Elapsed(t *testing.T) {
	tracker := NewProgressTracker()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, tracker.Elapsed(), 5*time.Millisecond)
}
