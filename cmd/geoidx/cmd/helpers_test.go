package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/geoidx/internal/store"
)

// places is two boundaries, a street inside both and a shop on the street.
// Place 12 has no name and always fails.
func places() []store.Record {
	return []store.Record{
		{ID: 1, Rank: 4, AddressRank: 4, Boundary: true, Name: "France",
			Centroid: store.Point{Lon: 2, Lat: 47}, BBox: store.BBox{MinLon: -5, MinLat: 41, MaxLon: 10, MaxLat: 51}},
		{ID: 2, Rank: 12, AddressRank: 12, Boundary: true, Name: "Paris",
			Centroid: store.Point{Lon: 2.35, Lat: 48.85}, BBox: store.BBox{MinLon: 2.2, MinLat: 48.8, MaxLon: 2.5, MaxLat: 48.9}},
		{ID: 10, Rank: 26, AddressRank: 26, Name: "Rue Cler",
			Centroid: store.Point{Lon: 2.30, Lat: 48.85}},
		{ID: 11, Rank: 30, AddressRank: 30, Name: "Café Central", ParentID: 10,
			Centroid: store.Point{Lon: 2.301, Lat: 48.851}},
	}
}

func nameless() store.Record {
	return store.Record{ID: 12, Rank: 30, AddressRank: 30, Centroid: store.Point{Lon: 2.30, Lat: 48.85}}
}

// workspace isolates config lookup in a temp directory holding a database
// with records, and returns the database path.
func workspace(t *testing.T, records []store.Record) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CI", "1")
	t.Chdir(dir)

	dbPath := filepath.Join(dir, "nominatim.db")
	s, err := store.Open(dbPath, store.Options{})
	require.NoError(t, err)
	require.NoError(t, s.InsertRecords(context.Background(), records))
	require.NoError(t, s.Close())
	return dbPath
}

// run executes the root command with args.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func openStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenExisting(path, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
