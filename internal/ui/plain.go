package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
//
// Format: [STAGE] current/total - message, or [RANK 26] for rank groups.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	tag := event.Stage.Icon()
	if event.Rank != NoRank && event.Stage != StagePlanning {
		tag = fmt.Sprintf("%s %d", tag, event.Rank)
	}

	switch {
	case event.Total > 0 && event.Message == "":
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d\n", tag, event.Current, event.Total)
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", tag, event.Current, event.Total, event.Message)
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", tag, event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	_, _ = fmt.Fprintf(r.out, "%s: place %d (rank %d): %v\n", prefix, event.PlaceID, event.Rank, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	verb := "Complete"
	if stats.Cancelled {
		verb = "Cancelled"
	}
	_, _ = fmt.Fprintf(r.out, "%s: %d of %d places indexed in %s",
		verb, stats.Succeeded, stats.Attempted, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed: %d transient, %d permanent)",
			stats.Failed, stats.Transient, stats.Permanent)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Stages.Boundaries > 0 || stats.Stages.Ranks > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Phase Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Boundaries: %s\n", stats.Stages.Boundaries.Round(100*time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Ranks:      %s\n", stats.Stages.Ranks.Round(100*time.Millisecond))
	}

	if stats.Complete {
		_, _ = fmt.Fprintln(r.out, "Database marked as indexed.")
	} else {
		_, _ = fmt.Fprintln(r.out, "Database not marked as indexed; re-run to resume.")
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
