package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDatabaseCmd(t *testing.T) {
	// Given: a database that was never indexed
	workspace(t, places())

	// When: checking it
	stdout, _, err := run(t, "check-database")

	// Then: it stops at the pending places
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, stdout, "geoidx Database Check")
	assert.Contains(t, stdout, "[PASS] places_table")
	assert.Contains(t, stdout, "[FAIL] indexing_status: 4 places not indexed")
	assert.NotContains(t, stdout, "indexed_flag")

	// When: indexing and checking again
	_, _, err = run(t, "index", "--json", "--skip-check")
	require.NoError(t, err)
	stdout, _, err = run(t, "check-database")

	// Then: every check passes
	require.NoError(t, err)
	assert.Contains(t, stdout, "[PASS] indexed_flag")
	assert.Contains(t, stdout, "[PASS] search_index: sqlite, 4 documents")
	assert.Contains(t, stdout, "Status: READY")
}

func TestCheckDatabaseCmd_MissingDatabase(t *testing.T) {
	workspace(t, places())

	stdout, _, err := run(t, "check-database", "--db", "missing.db")

	require.Error(t, err)
	assert.Contains(t, stdout, "[FAIL] database: cannot open database")
	assert.NotContains(t, stdout, "places_table")
}
