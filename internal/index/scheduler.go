package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/geoidx/internal/compute"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
	"github.com/Aman-CERP/geoidx/internal/ui"
)

// progressInterval throttles per-record progress events.
const progressInterval = 250 * time.Millisecond

// Dependencies are the collaborators of a Scheduler.
type Dependencies struct {
	// Source lists records for planning (required).
	Source store.RecordSource

	// Completion persists per-record and run-level flags (required).
	Completion store.CompletionStore

	// Computer is the per-record unit of work (required).
	Computer compute.Computer

	// Runs records run history (optional).
	Runs store.RunLog

	// Renderer displays progress (optional).
	Renderer ui.Renderer

	// Logger receives structured run events (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// Scheduler drives a run: plan, boundary phase, rank phase, finalize.
type Scheduler struct {
	source     store.RecordSource
	completion store.CompletionStore
	runs       store.RunLog
	exec       *Executor
	renderer   ui.Renderer
	logger     *slog.Logger
	opts       PlanOptions
	newRunID   func() string
}

// NewScheduler creates a Scheduler with injected dependencies.
func NewScheduler(deps Dependencies, opts PlanOptions) (*Scheduler, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("record source is required")
	}
	if deps.Completion == nil {
		return nil, fmt.Errorf("completion store is required")
	}
	if deps.Computer == nil {
		return nil, fmt.Errorf("computer is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.Discard{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		source:     deps.Source,
		completion: deps.Completion,
		runs:       deps.Runs,
		exec:       NewExecutor(deps.Computer, deps.Completion),
		renderer:   renderer,
		logger:     logger,
		opts:       opts,
		newRunID:   func() string { return uuid.New().String() },
	}, nil
}

// Run indexes every pending record selected by sel.
//
// Per-record failures are counted in the Result and never returned as an
// error. The error is non-nil for invalid configuration, in which case no
// work was started, and for storage failures, which abort the run. On abort
// the partial Result is returned alongside the error; records marked before
// the failure stay marked.
//
// Cancelling ctx stops the run at the next rank barrier. The group in
// flight finishes first.
//
// ResolvePhases always enables at least one phase, so Run never hits
// Partition's "no indexing phase selected" error.
func (s *Scheduler) Run(ctx context.Context, sel Selection) (*Result, error) {
	start := time.Now()
	phases := ResolvePhases(sel)

	s.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StagePlanning,
		Rank:    ui.NoRank,
		Message: "Loading pending places",
	})

	records, err := s.source.ListRecords(ctx, store.RecordFilter{PendingOnly: true})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, asStorageError(err)
	}
	plan, err := Partition(records, phases, s.opts)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: s.newRunID(), Phases: phases, Skipped: plan.Skipped}
	run := &store.Run{ID: result.RunID, StartedAt: start, Phases: phases.String()}

	s.logger.Info("index_run_started",
		slog.String("run_id", result.RunID),
		slog.String("phases", phases.String()),
		slog.Int("boundaries", plan.BoundaryCount()),
		slog.Int("ranks", plan.RankCount()),
		slog.Int("skipped", plan.Skipped),
		slog.Int("workers", s.opts.Workers))

	s.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StagePlanning,
		Rank:    ui.NoRank,
		Message: fmt.Sprintf("%d boundaries and %d places pending", plan.BoundaryCount(), plan.RankCount()),
	})

	// Bookkeeping must land even when the caller has already cancelled.
	final := context.WithoutCancel(ctx)

	if s.runs != nil {
		if err := s.runs.BeginRun(final, run); err != nil {
			return nil, asStorageError(err)
		}
	}

	runErr := s.execute(ctx, plan, result)

	if runErr == nil && !result.Cancelled {
		s.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageFinalizing,
			Rank:    ui.NoRank,
			Message: "Checking completion",
		})
		result.Complete, runErr = s.completion.MarkRunComplete(final, s.opts.Scope(phases))
		if runErr != nil {
			runErr = asStorageError(runErr)
		}
	}
	result.Duration = time.Since(start)

	if s.runs != nil {
		run.FinishedAt = time.Now()
		run.Attempted = result.Attempted()
		run.Succeeded = result.Succeeded()
		run.Failed = result.Failed()
		run.Complete = result.Complete
		run.Cancelled = result.Cancelled
		if err := s.runs.FinishRun(final, run); err != nil && runErr == nil {
			runErr = asStorageError(err)
		}
		if runErr == nil {
			if err := s.runs.Checkpoint(final); err != nil {
				s.logger.Warn("index_checkpoint_failed",
					slog.String("run_id", result.RunID),
					slog.String("error", err.Error()))
			}
		}
	}

	s.report(result, runErr)
	return result, runErr
}

// execute runs both phases and stops at the first barrier after
// cancellation or at the first fatal outcome.
func (s *Scheduler) execute(ctx context.Context, plan *Plan, result *Result) error {
	if plan.Empty() {
		return nil
	}

	// A run with work clears the flag first so readers never see a stale
	// "indexed" while places are being recomputed.
	if err := s.completion.MarkRunIncomplete(context.WithoutCancel(ctx)); err != nil {
		return asStorageError(err)
	}

	phases := []struct {
		stage  ui.Stage
		groups []Group
		total  int
		into   *PhaseResult
	}{
		{ui.StageBoundaries, plan.Boundaries, plan.BoundaryCount(), &result.Boundaries},
		{ui.StageRanks, plan.Ranks, plan.RankCount(), &result.Ranks},
	}

	p := newPool(s.opts.Workers, s.exec)
	for _, ph := range phases {
		if len(ph.groups) == 0 {
			continue
		}
		progress := newPhaseProgress(s.renderer, ph.stage, ph.total)

		for _, g := range ph.groups {
			if ctx.Err() != nil {
				result.Cancelled = true
				s.logger.Info("index_run_cancelled",
					slog.String("run_id", result.RunID),
					slog.Int("next_rank", g.Rank),
					slog.Bool("boundary", g.Boundary))
				return nil
			}

			progress.startGroup(g)
			rank, failures, err := p.run(context.WithoutCancel(ctx), g, progress.observe)
			ph.into.add(rank, failures)
			progress.finishGroup(rank)

			s.logger.Info("index_rank_complete",
				slog.String("run_id", result.RunID),
				slog.Int("rank", rank.Rank),
				slog.Bool("boundary", rank.Boundary),
				slog.Int("attempted", rank.Attempted),
				slog.Int("succeeded", rank.Succeeded),
				slog.Int("failed", rank.Failed),
				slog.Duration("duration", rank.Duration))

			if err != nil {
				s.logger.Error("index_run_aborted",
					append([]any{slog.String("run_id", result.RunID), slog.Int("rank", rank.Rank)},
						geoerrors.LogAttrs(err)...)...)
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) report(result *Result, runErr error) {
	for _, f := range result.Failures() {
		if f.Kind == OutcomeFatal {
			continue
		}
		s.logger.Debug("index_record_failed",
			append([]any{slog.Int64("place_id", f.PlaceID), slog.Int("rank", f.Rank), slog.String("kind", f.Kind.String())},
				geoerrors.LogAttrs(f.Err)...)...)
	}

	s.logger.Info("index_run_finished",
		slog.String("run_id", result.RunID),
		slog.Int("attempted", result.Attempted()),
		slog.Int("succeeded", result.Succeeded()),
		slog.Int("failed", result.Failed()),
		slog.Bool("complete", result.Complete),
		slog.Bool("cancelled", result.Cancelled),
		slog.Bool("aborted", runErr != nil),
		slog.Duration("duration", result.Duration))

	s.renderer.Complete(ui.CompletionStats{
		RunID:     result.RunID,
		Attempted: result.Attempted(),
		Succeeded: result.Succeeded(),
		Failed:    result.Failed(),
		Transient: result.Boundaries.Transient + result.Ranks.Transient,
		Permanent: result.Boundaries.Permanent + result.Ranks.Permanent,
		Duration:  result.Duration,
		Complete:  result.Complete,
		Cancelled: result.Cancelled,
		Stages: ui.StageTimings{
			Boundaries: result.Boundaries.Duration,
			Ranks:      result.Ranks.Duration,
		},
	})
}

// phaseProgress turns pool outcomes into renderer events.
type phaseProgress struct {
	renderer ui.Renderer
	stage    ui.Stage
	total    int

	done     atomic.Int64
	rank     atomic.Int64
	mu       sync.Mutex
	lastSent time.Time
}

func newPhaseProgress(r ui.Renderer, stage ui.Stage, total int) *phaseProgress {
	return &phaseProgress{renderer: r, stage: stage, total: total}
}

func (p *phaseProgress) startGroup(g Group) {
	p.rank.Store(int64(g.Rank))
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   p.stage,
		Rank:    g.Rank,
		Current: int(p.done.Load()),
		Total:   p.total,
		Message: fmt.Sprintf("%d places in %d batches", g.Size, len(g.Batches)),
	})
}

func (p *phaseProgress) observe(out Outcome) {
	current := p.done.Add(1)

	if out.Failed() && out.Kind != OutcomeFatal {
		p.renderer.AddError(ui.ErrorEvent{
			PlaceID: out.PlaceID,
			Rank:    out.Rank,
			Err:     out.Err,
			IsWarn:  out.Kind == OutcomeTransient,
		})
	}

	p.mu.Lock()
	due := time.Since(p.lastSent) >= progressInterval
	if due {
		p.lastSent = time.Now()
	}
	p.mu.Unlock()

	if due {
		p.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   p.stage,
			Rank:    int(p.rank.Load()),
			Current: int(current),
			Total:   p.total,
		})
	}
}

func (p *phaseProgress) finishGroup(r RankResult) {
	p.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   p.stage,
		Rank:    r.Rank,
		Current: int(p.done.Load()),
		Total:   p.total,
		Message: fmt.Sprintf("rank %d done: %d indexed, %d failed", r.Rank, r.Succeeded, r.Failed),
	})
}
