// Package ui provides terminal progress and status display for index runs.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of an index run.
type Stage int

const (
	// StagePlanning loads pending places and builds the plan.
	StagePlanning Stage = iota
	// StageBoundaries indexes boundary places.
	StageBoundaries
	// StageRanks indexes the remaining places rank by rank.
	StageRanks
	// StageFinalizing sets the run-level completion flag.
	StageFinalizing
	// StageComplete indicates the run is over.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StagePlanning:
		return "Planning"
	case StageBoundaries:
		return "Boundaries"
	case StageRanks:
		return "Ranks"
	case StageFinalizing:
		return "Finalizing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StagePlanning:
		return "PLAN"
	case StageBoundaries:
		return "BOUNDARY"
	case StageRanks:
		return "RANK"
	case StageFinalizing:
		return "FINAL"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// NoRank marks events that do not belong to a rank group.
const NoRank = -1

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage Stage
	// Rank is the rank group being processed, or NoRank.
	Rank    int
	Current int
	Total   int
	Message string
}

// ErrorEvent reports a place that failed to index.
type ErrorEvent struct {
	PlaceID int64
	Rank    int
	Err     error
	// IsWarn marks transient failures that a later run may fix.
	IsWarn bool
}

// StageTimings tracks duration per phase.
type StageTimings struct {
	Boundaries time.Duration
	Ranks      time.Duration
}

// CompletionStats summarises a finished run.
type CompletionStats struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    int
	Transient int
	Permanent int
	Duration  time.Duration
	Complete  bool // run-level flag was set
	Cancelled bool
	Stages    StageTimings
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	Database     string // Database path shown in the header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithDatabase sets the database path shown in the header.
func WithDatabase(path string) ConfigOption {
	return func(c *Config) {
		c.Database = path
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:       output,
		SpinnerStyle: "dots",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// renderer for CI, pipes or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// Discard is a Renderer that drops everything.
type Discard struct{}

func (Discard) Start(context.Context) error  { return nil }
func (Discard) UpdateProgress(ProgressEvent) {}
func (Discard) AddError(ErrorEvent)          {}
func (Discard) Complete(CompletionStats)     {}
func (Discard) Stop() error                  { return nil }
