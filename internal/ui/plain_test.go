package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{
			name:  "rank group with total",
			event: ProgressEvent{Stage: StageRanks, Rank: 26, Current: 50, Total: 100, Message: "streets"},
			want:  "[RANK 26] 50/100 - streets\n",
		},
		{
			name:  "boundary rank",
			event: ProgressEvent{Stage: StageBoundaries, Rank: 4, Current: 1, Total: 2},
			want:  "[BOUNDARY 4] 1/2\n",
		},
		{
			name:  "message only",
			event: ProgressEvent{Stage: StagePlanning, Rank: NoRank, Message: "loading pending places"},
			want:  "[PLAN] loading pending places\n",
		},
		{
			name:  "nothing to say",
			event: ProgressEvent{Stage: StageFinalizing, Rank: NoRank},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.UpdateProgress(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering a whole run
	require.NoError(t, r.Start(context.Background()))
	for _, stage := range []Stage{StagePlanning, StageBoundaries, StageRanks, StageFinalizing} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Rank: 30, Current: 1, Total: 2, Message: "working"})
	}
	r.AddError(ErrorEvent{PlaceID: 7, Rank: 30, Err: errors.New("bad geometry")})
	r.Complete(CompletionStats{Attempted: 2, Succeeded: 1, Failed: 1, Permanent: 1})
	require.NoError(t, r.Stop())

	// Then: output contains no escape codes
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{PlaceID: 7, Rank: 30, Err: errors.New("bad geometry")})
	r.AddError(ErrorEvent{PlaceID: 8, Rank: 26, Err: errors.New("busy"), IsWarn: true})

	assert.Equal(t,
		"ERROR: place 7 (rank 30): bad geometry\nWARN: place 8 (rank 26): busy\n",
		buf.String())
	assert.Len(t, r.errors, 2)
}

func TestPlainRenderer_Complete(t *testing.T) {
	t.Run("complete with failures", func(t *testing.T) {
		buf := &bytes.Buffer{}
		r := NewPlainRenderer(NewConfig(buf))

		r.Complete(CompletionStats{
			Attempted: 10, Succeeded: 7, Failed: 3, Transient: 1, Permanent: 2,
			Duration: 1500 * time.Millisecond,
			Stages:   StageTimings{Boundaries: 500 * time.Millisecond, Ranks: time.Second},
		})

		out := buf.String()
		assert.Contains(t, out, "Complete: 7 of 10 places indexed in 1.5s")
		assert.Contains(t, out, "(3 failed: 1 transient, 2 permanent)")
		assert.Contains(t, out, "Boundaries: 500ms")
		assert.Contains(t, out, "re-run to resume")
	})

	t.Run("cancelled", func(t *testing.T) {
		buf := &bytes.Buffer{}
		r := NewPlainRenderer(NewConfig(buf))

		r.Complete(CompletionStats{Attempted: 1, Succeeded: 1, Cancelled: true})

		assert.Contains(t, buf.String(), "Cancelled: 1 of 1")
	})

	t.Run("flag set", func(t *testing.T) {
		buf := &bytes.Buffer{}
		r := NewPlainRenderer(NewConfig(buf))

		r.Complete(CompletionStats{Attempted: 3, Succeeded: 3, Complete: true})

		assert.Contains(t, buf.String(), "Database marked as indexed.")
		assert.NotContains(t, buf.String(), "failed")
	})
}
