package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/geoidx/internal/ui"
)

func TestStatusCmd_BeforeAndAfterRun(t *testing.T) {
	// Given: a database that was never indexed
	workspace(t, append(places(), nameless()))

	// When: asking for status
	stdout, _, err := run(t, "status")

	// Then: everything is pending and there is no run yet
	require.NoError(t, err)
	assert.Contains(t, stdout, "Indexed:  no")
	assert.Contains(t, stdout, "Places:   5 (5 pending)")
	assert.Contains(t, stdout, "boundary  4")
	assert.NotContains(t, stdout, "Last run:")

	// When: indexing and asking again
	_, _, err = run(t, "index", "--json", "--skip-check")
	require.NoError(t, err)
	stdout, _, err = run(t, "status")

	// Then: the failure and the run outcome show up
	require.NoError(t, err)
	assert.Contains(t, stdout, "Places:   5 (1 pending)")
	assert.Contains(t, stdout, "Permanent: 1")
	assert.Contains(t, stdout, "Search:   4 documents")
	assert.Contains(t, stdout, "incomplete (4/5 indexed, 1 failed)")
}

func TestStatusCmd_JSON(t *testing.T) {
	workspace(t, append(places(), nameless()))
	_, _, err := run(t, "index", "--json", "--skip-check")
	require.NoError(t, err)

	stdout, _, err := run(t, "status", "--json")
	require.NoError(t, err)

	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.False(t, info.Indexed)
	assert.Equal(t, 5, info.Total)
	assert.Equal(t, 1, info.Pending)
	assert.Equal(t, 1, info.Permanent)
	assert.Zero(t, info.Transient)
	assert.Equal(t, 4, info.SearchDocs)
	assert.Positive(t, info.DatabaseSize)

	require.Len(t, info.Ranks, 4)
	assert.True(t, info.Ranks[0].Boundary)
	assert.Equal(t, 30, info.Ranks[3].Rank)
	assert.Equal(t, 2, info.Ranks[3].Total)
	assert.Equal(t, 1, info.Ranks[3].Pending)

	require.NotNil(t, info.LastRun)
	assert.Equal(t, 5, info.LastRun.Attempted)
	assert.False(t, info.LastRun.Complete)
	assert.False(t, info.LastRun.FinishedAt.IsZero())
}

func TestStatusCmd_MissingDatabase(t *testing.T) {
	workspace(t, places())

	_, _, err := run(t, "status", "--db", "missing.db")

	require.Error(t, err)
	assert.Equal(t, ExitUnavailable, ExitCode(err))
}
