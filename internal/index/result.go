package index

import "time"

// Failure identifies a record a run could not index.
type Failure struct {
	PlaceID int64
	Rank    int
	Kind    OutcomeKind
	Err     error
}

// RankResult counts the outcomes of one rank group.
type RankResult struct {
	Rank      int
	Boundary  bool
	Attempted int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// PhaseResult aggregates the rank groups of one phase.
type PhaseResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Transient int
	Permanent int
	Ranks     []RankResult
	Failures  []Failure
	Duration  time.Duration
}

// FailedIDs lists the place ids that failed in this phase.
func (p *PhaseResult) FailedIDs() []int64 {
	ids := make([]int64, 0, len(p.Failures))
	for _, f := range p.Failures {
		ids = append(ids, f.PlaceID)
	}
	return ids
}

func (p *PhaseResult) add(rank RankResult, failures []Failure) {
	p.Ranks = append(p.Ranks, rank)
	p.Attempted += rank.Attempted
	p.Succeeded += rank.Succeeded
	p.Failed += rank.Failed
	p.Duration += rank.Duration
	for _, f := range failures {
		switch f.Kind {
		case OutcomeTransient:
			p.Transient++
		case OutcomePermanent:
			p.Permanent++
		}
	}
	p.Failures = append(p.Failures, failures...)
}

// Result is the outcome of Scheduler.Run.
type Result struct {
	RunID      string
	Phases     Phases
	Boundaries PhaseResult
	Ranks      PhaseResult

	// Skipped counts pending records outside the selected rank windows.
	Skipped int

	// Complete reports whether the run-level indexed flag was set.
	Complete bool
	// Cancelled reports whether the run stopped at a barrier on request.
	Cancelled bool

	Duration time.Duration
}

// Attempted is the number of records attempted across both phases.
func (r *Result) Attempted() int { return r.Boundaries.Attempted + r.Ranks.Attempted }

// Succeeded is the number of records indexed across both phases.
func (r *Result) Succeeded() int { return r.Boundaries.Succeeded + r.Ranks.Succeeded }

// Failed is the number of records left unindexed across both phases.
func (r *Result) Failed() int { return r.Boundaries.Failed + r.Ranks.Failed }

// Failures lists every failed record, boundary phase first.
func (r *Result) Failures() []Failure {
	out := make([]Failure, 0, len(r.Boundaries.Failures)+len(r.Ranks.Failures))
	out = append(out, r.Boundaries.Failures...)
	return append(out, r.Ranks.Failures...)
}
