package index

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// pool runs the batches of one group on a bounded set of goroutines.
type pool struct {
	workers int
	exec    *Executor
}

func newPool(workers int, exec *Executor) *pool {
	return &pool{workers: max(workers, 1), exec: exec}
}

// run executes every batch of g and returns once all of them have finished.
// A fatal outcome stops the pool from starting further records; records
// already in flight finish and are counted. observe is called once per
// record from the worker goroutines.
func (p *pool) run(ctx context.Context, g Group, observe func(Outcome)) (RankResult, []Failure, error) {
	start := time.Now()

	var (
		mu       sync.Mutex
		result   = RankResult{Rank: g.Rank, Boundary: g.Boundary}
		failures []Failure
		fatal    error
		stopped  atomic.Bool
	)

	eg := new(errgroup.Group)
	eg.SetLimit(p.workers)

	for _, batch := range g.Batches {
		if stopped.Load() {
			break
		}
		eg.Go(func() error {
			for _, rec := range batch {
				if stopped.Load() {
					return nil
				}
				out := p.exec.Execute(ctx, rec)

				mu.Lock()
				result.Attempted++
				if out.Failed() {
					result.Failed++
					failures = append(failures, Failure{PlaceID: out.PlaceID, Rank: out.Rank, Kind: out.Kind, Err: out.Err})
				} else {
					result.Succeeded++
				}
				if out.Kind == OutcomeFatal && fatal == nil {
					fatal = out.Err
					stopped.Store(true)
				}
				mu.Unlock()

				if observe != nil {
					observe(out)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	result.Duration = time.Since(start)
	return result, failures, fatal
}
