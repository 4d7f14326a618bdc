package compute

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/searchindex"
	"github.com/Aman-CERP/geoidx/internal/store"
)

func newPlaces(t *testing.T, records ...store.Record) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "places.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InsertRecords(context.Background(), records))
	return s
}

func newSearch(t *testing.T) searchindex.Index {
	t.Helper()
	idx, err := searchindex.Open("", searchindex.BackendSQLite, searchindex.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// docIndex is an in-memory Index that keeps the last document per place.
type docIndex struct {
	mu        sync.Mutex
	docs      map[int64]searchindex.Document
	deleteErr error
}

func newDocIndex() *docIndex {
	return &docIndex{docs: make(map[int64]searchindex.Document)}
}

func (d *docIndex) Put(_ context.Context, docs []searchindex.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range docs {
		d.docs[doc.PlaceID] = doc
	}
	return nil
}

func (d *docIndex) Delete(_ context.Context, ids []int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	for _, id := range ids {
		delete(d.docs, id)
	}
	return nil
}

func (d *docIndex) Stats() searchindex.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return searchindex.Stats{DocumentCount: len(d.docs)}
}

func (d *docIndex) Close() error { return nil }

func hierarchy() []store.Record {
	return []store.Record{
		{ID: 1, Rank: 4, AddressRank: 4, Boundary: true, Name: "France",
			Centroid: store.Point{Lon: 2, Lat: 47}, BBox: store.BBox{MinLon: -5, MinLat: 41, MaxLon: 10, MaxLat: 51}},
		{ID: 2, Rank: 12, AddressRank: 12, Boundary: true, Name: "Paris",
			Centroid: store.Point{Lon: 2.35, Lat: 48.85}, BBox: store.BBox{MinLon: 2.2, MinLat: 48.8, MaxLon: 2.5, MaxLat: 48.9}},
		{ID: 10, Rank: 26, AddressRank: 26, Name: "Rue Cler",
			Centroid: store.Point{Lon: 2.30, Lat: 48.85}},
		{ID: 11, Rank: 30, AddressRank: 30, Name: "Café Central", ParentID: 10,
			Centroid: store.Point{Lon: 2.301, Lat: 48.851}},
		{ID: 12, Rank: 30, AddressRank: 30, Name: "  ",
			Centroid: store.Point{Lon: 2.30, Lat: 48.85}},
		{ID: 13, Rank: 30, AddressRank: 30, Name: "Orphan", ParentID: 999},
	}
}

// computeInOrder runs the computer over ids the way the scheduler would,
// marking each one indexed after success.
func computeInOrder(t *testing.T, c Computer, s *store.SQLiteStore, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		rec, err := s.GetRecord(ctx, id)
		require.NoError(t, err)
		require.NoError(t, c.Compute(ctx, *rec), "place %d", id)
		require.NoError(t, s.MarkIndexed(ctx, id))
	}
}

func TestTokenComputer_BuildsAddressChain(t *testing.T) {
	// Given: a country, a city inside it and a street inside the city
	s := newPlaces(t, hierarchy()...)
	idx := newDocIndex()
	c := NewTokenComputer(s, idx, 0)

	// When: computing in rank order
	computeInOrder(t, c, s, 1, 2, 10)

	// Then: each place stores its smallest containing boundary and address
	ctx := context.Background()
	street, err := s.GetRecord(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), street.ParentID)
	assert.Equal(t, "Paris, France", street.Address)

	city, err := s.GetRecord(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), city.ParentID)
	assert.Equal(t, "France", city.Address)

	country, err := s.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), country.ParentID)
	assert.Equal(t, "", country.Address)

	// And: the street's document carries its address
	assert.Equal(t, 3, idx.Stats().DocumentCount)
	require.Contains(t, idx.docs, int64(10))
	assert.Equal(t, "Rue Cler Paris France", idx.docs[10].Content())
}

func TestTokenComputer_ExplicitParentWins(t *testing.T) {
	s := newPlaces(t, hierarchy()...)
	idx := newDocIndex()
	c := NewTokenComputer(s, idx, 0)

	computeInOrder(t, c, s, 1, 2, 10, 11)

	cafe, err := s.GetRecord(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cafe.ParentID)
	assert.Equal(t, "Rue Cler, Paris, France", cafe.Address)

	require.Contains(t, idx.docs, int64(11))
	assert.Equal(t, []string{"Rue Cler", "Paris", "France"}, idx.docs[11].Address)
}

func TestTokenComputer_CachesChains(t *testing.T) {
	s := newPlaces(t, hierarchy()...)
	c := NewTokenComputer(s, newSearch(t), 0)

	computeInOrder(t, c, s, 1, 2)

	assert.Equal(t, 2, c.chains.Len())
	chain, ok := c.chains.Get(2)
	require.True(t, ok)
	assert.Equal(t, []string{"Paris", "France"}, chain)
}

func TestTokenComputer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		id       int64
		wantCode string
	}{
		{"blank name is permanent", 12, geoerrors.ErrCodeRecordPermanent},
		{"missing explicit parent is permanent", 13, geoerrors.ErrCodeRecordPermanent},
		{"unindexed explicit parent is transient", 11, geoerrors.ErrCodeComputeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: nothing indexed yet
			s := newPlaces(t, hierarchy()...)
			c := NewTokenComputer(s, newSearch(t), 0)
			rec, err := s.GetRecord(context.Background(), tt.id)
			require.NoError(t, err)

			// When: computing the record
			err = c.Compute(context.Background(), *rec)

			// Then: the failure is classified
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, geoerrors.GetCode(err))
		})
	}
}

func TestTokenComputer_ClosedSearchIndexIsTransient(t *testing.T) {
	s := newPlaces(t, hierarchy()...)
	idx := newSearch(t)
	require.NoError(t, idx.Close())
	c := NewTokenComputer(s, idx, 0)

	rec, err := s.GetRecord(context.Background(), 1)
	require.NoError(t, err)

	err = c.Compute(context.Background(), *rec)
	assert.True(t, geoerrors.IsTransient(err))
}

func TestTokenComputer_ClosedStoreIsStorageUnavailable(t *testing.T) {
	s := newPlaces(t, hierarchy()...)
	rec, err := s.GetRecord(context.Background(), 10)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	c := NewTokenComputer(s, newSearch(t), 0)
	err = c.Compute(context.Background(), *rec)
	assert.True(t, geoerrors.IsStorageUnavailable(err))
}

func TestTokenComputer_VanishedPlaceLosesSearchDocument(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		wantCode  string
		wantDocs  int
	}{
		{"document removed", nil, geoerrors.ErrCodeRecordPermanent, 0},
		{"removal failure is retried", errors.New("index is closed"), geoerrors.ErrCodeComputeTransient, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a search document for a place no longer in the database
			s := newPlaces(t, hierarchy()...)
			idx := newDocIndex()
			idx.deleteErr = tt.deleteErr
			ghost := store.Record{ID: 99, Rank: 30, AddressRank: 30, Name: "Closed Bakery"}
			require.NoError(t, idx.Put(context.Background(), []searchindex.Document{{PlaceID: 99, Name: ghost.Name}}))

			// When: computing it
			err := NewTokenComputer(s, idx, 0).Compute(context.Background(), ghost)

			// Then: the stale document goes with it
			assert.Equal(t, tt.wantCode, geoerrors.GetCode(err))
			assert.Equal(t, tt.wantDocs, idx.Stats().DocumentCount)
		})
	}
}
