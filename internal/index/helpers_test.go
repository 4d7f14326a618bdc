package index

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
	"github.com/Aman-CERP/geoidx/internal/ui"
)

// scenario is two boundaries plus ranks {0: [R1], 1: [R2, R3]}.
func scenario() []store.Record {
	return []store.Record{
		{ID: 1, Rank: 8, Boundary: true, Name: "B1"},
		{ID: 2, Rank: 12, Boundary: true, Name: "B2"},
		{ID: 10, Rank: 0, Name: "R1"},
		{ID: 20, Rank: 1, Name: "R2"},
		{ID: 21, Rank: 1, Name: "R3"},
	}
}

// layered returns perRank records for every rank in ranks.
func layered(ranks []int, perRank int) []store.Record {
	var out []store.Record
	for _, r := range ranks {
		for i := range perRank {
			out = append(out, store.Record{ID: int64(r*100 + i + 1), Rank: r, Name: "place"})
		}
	}
	return out
}

func testOptions(workers int) PlanOptions {
	return PlanOptions{
		Workers:         workers,
		MinRank:         0,
		MaxRank:         30,
		BoundaryMinRank: 4,
		BoundaryMaxRank: 25,
	}
}

func newStore(t *testing.T, records []store.Record) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open("", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InsertRecords(context.Background(), records))
	return s
}

func newTestScheduler(t *testing.T, s *store.SQLiteStore, c *recorder, workers int, r ui.Renderer) *Scheduler {
	t.Helper()
	sched, err := NewScheduler(Dependencies{
		Source:     s,
		Completion: s,
		Runs:       s,
		Computer:   c,
		Renderer:   r,
	}, testOptions(workers))
	require.NoError(t, err)
	return sched
}

func indexedIDs(t *testing.T, s *store.SQLiteStore) []int64 {
	t.Helper()
	records, err := s.ListRecords(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
	var ids []int64
	for _, r := range records {
		if r.Indexed {
			ids = append(ids, r.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// event is one compute boundary observed by the recorder.
type event struct {
	id    int64
	rank  int
	bound bool
	start bool
}

// recorder is a Computer that logs the start and end of every call.
type recorder struct {
	mu        sync.Mutex
	events    []event
	succeeded map[int64]int
	calls     map[int64]int

	delay time.Duration
	fail  map[int64]error
	hook  func(rec store.Record)
}

func newRecorder() *recorder {
	return &recorder{
		succeeded: make(map[int64]int),
		calls:     make(map[int64]int),
		fail:      make(map[int64]error),
	}
}

func (r *recorder) Compute(ctx context.Context, rec store.Record) error {
	r.mu.Lock()
	r.events = append(r.events, event{id: rec.ID, rank: rec.Rank, bound: rec.Boundary, start: true})
	r.calls[rec.ID]++
	err := r.fail[rec.ID]
	r.mu.Unlock()

	if r.hook != nil {
		r.hook(rec)
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{id: rec.ID, rank: rec.Rank, bound: rec.Boundary})
	if err == nil {
		r.succeeded[rec.ID]++
	}
	return err
}

func (r *recorder) computed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.calls))
	for id := range r.calls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

// fakeCompletion is an in-memory CompletionStore with error injection.
type fakeCompletion struct {
	mu       sync.Mutex
	records  []store.Record
	indexed  map[int64]bool
	failures map[int64]store.Failure
	complete bool

	markErr   func(id int64) error
	failErr   error
	markCalls int
}

func newFakeCompletion(records []store.Record) *fakeCompletion {
	return &fakeCompletion{
		records:  records,
		indexed:  make(map[int64]bool),
		failures: make(map[int64]store.Failure),
	}
}

func (f *fakeCompletion) ListRecords(_ context.Context, _ store.RecordFilter) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Record
	for _, r := range f.records {
		if !f.indexed[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCompletion) MarkIndexed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		if err := f.markErr(id); err != nil {
			return err
		}
	}
	f.indexed[id] = true
	delete(f.failures, id)
	return nil
}

func (f *fakeCompletion) IsIndexed(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[id], nil
}

func (f *fakeCompletion) MarkRunComplete(_ context.Context, _ store.Scope) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if !f.indexed[r.ID] {
			return false, nil
		}
	}
	f.complete = true
	return true, nil
}

func (f *fakeCompletion) MarkRunIncomplete(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = false
	return nil
}

func (f *fakeCompletion) IsRunComplete(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete, nil
}

func (f *fakeCompletion) RecordFailure(_ context.Context, failure store.Failure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.failures[failure.PlaceID] = failure
	return nil
}

func storageDown() error {
	return geoerrors.StorageUnavailable("database is locked", nil)
}

// recordingRenderer captures renderer calls.
type recordingRenderer struct {
	mu       sync.Mutex
	progress []ui.ProgressEvent
	errors   []ui.ErrorEvent
	complete []ui.CompletionStats
}

func (r *recordingRenderer) Start(context.Context) error { return nil }
func (r *recordingRenderer) Stop() error                 { return nil }

func (r *recordingRenderer) UpdateProgress(e ui.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, e)
}

func (r *recordingRenderer) AddError(e ui.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, e)
}

func (r *recordingRenderer) Complete(s ui.CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = append(r.complete, s)
}

// stages returns the distinct stages in the order they were first reported.
func (r *recordingRenderer) stages() []ui.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ui.Stage
	for _, e := range r.progress {
		if len(out) == 0 || out[len(out)-1] != e.Stage {
			out = append(out, e.Stage)
		}
	}
	return out
}
