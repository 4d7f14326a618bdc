package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Aman-CERP/geoidx/internal/compute"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// OutcomeKind classifies the result of one unit of work.
type OutcomeKind int

const (
	// OutcomeSucceeded means the record was computed and marked indexed.
	OutcomeSucceeded OutcomeKind = iota
	// OutcomeTransient means compute failed in a way a retry may fix.
	OutcomeTransient
	// OutcomePermanent means the record cannot be indexed as it stands.
	OutcomePermanent
	// OutcomeFatal means the completion store failed; the run must stop.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is what Execute reports for one record.
type Outcome struct {
	PlaceID int64
	Rank    int
	Kind    OutcomeKind
	Err     error
}

// Failed reports whether the record is still unindexed.
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeSucceeded
}

// Executor applies the compute step to one record and persists the result.
// It holds no per-record state and never retries.
type Executor struct {
	computer compute.Computer
	store    store.CompletionStore
}

// NewExecutor creates an executor.
func NewExecutor(computer compute.Computer, completion store.CompletionStore) *Executor {
	return &Executor{computer: computer, store: completion}
}

// Execute computes rec and marks it indexed on success. On failure the
// record stays unindexed and a failure row is written.
func (e *Executor) Execute(ctx context.Context, rec store.Record) Outcome {
	out := Outcome{PlaceID: rec.ID, Rank: rec.Rank}

	if err := e.computer.Compute(ctx, rec); err != nil {
		out.Kind, out.Err = classify(rec, err)
		if out.Kind == OutcomeFatal {
			return out
		}
		return e.recordFailure(ctx, out)
	}

	if err := e.store.MarkIndexed(ctx, rec.ID); err != nil {
		if geoerrors.GetCode(err) == geoerrors.ErrCodeRecordNotFound {
			out.Kind = OutcomePermanent
			out.Err = geoerrors.PermanentRecord(fmt.Sprintf("place %d vanished before it could be marked", rec.ID), err).
				WithDetail("place_id", strconv.FormatInt(rec.ID, 10))
			return out
		}
		out.Kind = OutcomeFatal
		out.Err = asStorageError(err)
		return out
	}

	out.Kind = OutcomeSucceeded
	return out
}

func (e *Executor) recordFailure(ctx context.Context, out Outcome) Outcome {
	kind := store.FailurePermanent
	if out.Kind == OutcomeTransient {
		kind = store.FailureTransient
	}

	err := e.store.RecordFailure(ctx, store.Failure{
		PlaceID: out.PlaceID,
		Kind:    kind,
		Message: out.Err.Error(),
	})
	if err != nil {
		return Outcome{PlaceID: out.PlaceID, Rank: out.Rank, Kind: OutcomeFatal, Err: asStorageError(err)}
	}
	return out
}

// classify maps a compute error onto an outcome. Errors that carry no
// classification are permanent; context errors are transient.
func classify(rec store.Record, err error) (OutcomeKind, error) {
	switch {
	case geoerrors.IsStorageUnavailable(err):
		return OutcomeFatal, err
	case geoerrors.IsTransient(err):
		return OutcomeTransient, err
	case geoerrors.IsPermanent(err):
		return OutcomePermanent, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTransient, geoerrors.TransientCompute(fmt.Sprintf("compute for place %d interrupted: %v", rec.ID, err), err).
			WithDetail("place_id", strconv.FormatInt(rec.ID, 10))
	default:
		return OutcomePermanent, geoerrors.PermanentRecord(fmt.Sprintf("compute for place %d failed: %v", rec.ID, err), err).
			WithDetail("place_id", strconv.FormatInt(rec.ID, 10))
	}
}

func asStorageError(err error) error {
	if geoerrors.IsStorageUnavailable(err) {
		return err
	}
	return geoerrors.StorageUnavailable("completion store write failed", err)
}
