package preflight

import (
	"context"
	"fmt"
	"strings"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/searchindex"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// databaseCheck is one step of CheckDatabase. A nil db means the database
// could not be opened.
type databaseCheck func(ctx context.Context, db *store.SQLiteStore) CheckResult

// CheckDatabase runs the ordered database checks against dbPath and stops
// at the first required failure. Unindexed places are counted within scope,
// the records a full run is responsible for. searchIndexPath is optional;
// when set, the search index is reported as a non-required check at the end.
func (c *Checker) CheckDatabase(ctx context.Context, dbPath string, scope store.Scope, searchIndexPath string) []CheckResult {
	db, openErr := store.OpenExisting(dbPath, store.Options{})
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	checks := []databaseCheck{
		func(ctx context.Context, db *store.SQLiteStore) CheckResult { return checkConnection(ctx, db, openErr) },
		tableCheck("places_table", "places",
			"The import didn't finish.",
			"Re-run the import that loads places into this database"),
		tableCheck("import_status_table", "import_status",
			"The database has no run-level status table.",
			"Run 'geoidx index' once to create the scheduler tables"),
		func(ctx context.Context, db *store.SQLiteStore) CheckResult { return checkPending(ctx, db, scope) },
		checkRunFlag,
	}

	var results []CheckResult
	for _, check := range checks {
		r := check(ctx, db)
		results = append(results, r)
		if r.IsCritical() {
			return results
		}
	}

	if searchIndexPath != "" {
		results = append(results, c.CheckSearchIndex(searchIndexPath))
	}
	return results
}

func checkConnection(ctx context.Context, db *store.SQLiteStore, openErr error) CheckResult {
	result := CheckResult{Name: "database", Required: true}

	err := openErr
	if err == nil {
		err = db.Ping(ctx)
	}
	if err != nil {
		result.Status = StatusFail
		result.Message = "cannot open database"
		hints := []string{"Hints:", "* " + err.Error()}
		if geoerrors.GetCode(err) == geoerrors.ErrCodeDatabaseNotFound {
			hints = append(hints, "* Check database.path in .geoidx.yaml or pass --db")
		} else {
			hints = append(hints, "* Is the file a SQLite database?", "* Is another process holding an exclusive lock?")
		}
		result.Details = strings.Join(hints, "\n")
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

func tableCheck(name, table, problem, hint string) databaseCheck {
	return func(ctx context.Context, db *store.SQLiteStore) CheckResult {
		result := CheckResult{Name: name, Required: true}

		ok, err := db.TableExists(ctx, table)
		switch {
		case err != nil:
			result.Status = StatusFail
			result.Message = fmt.Sprintf("cannot inspect table %s", table)
			result.Details = err.Error()
		case !ok:
			result.Status = StatusFail
			result.Message = fmt.Sprintf("table %s is missing", table)
			result.Details = problem + "\nHints:\n* " + hint
		default:
			result.Status = StatusPass
			result.Message = "OK"
		}
		return result
	}
}

func checkPending(ctx context.Context, db *store.SQLiteStore, scope store.Scope) CheckResult {
	result := CheckResult{Name: "indexing_status", Required: true}

	pending, err := db.CountPending(ctx, scope)
	if err != nil {
		result.Status = StatusFail
		result.Message = "cannot count unindexed places"
		result.Details = err.Error()
		return result
	}
	if pending > 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%d places not indexed", pending)
		result.Details = fmt.Sprintf("The indexing didn't finish. There is still %d places.\n"+
			"Hints:\n"+
			"* Run 'geoidx index' again; it resumes with the unindexed places\n"+
			"* Run 'geoidx failures' to see places that keep failing", pending)
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

func checkRunFlag(ctx context.Context, db *store.SQLiteStore) CheckResult {
	result := CheckResult{Name: "indexed_flag", Required: true}

	complete, err := db.IsRunComplete(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = "cannot read import_status"
		result.Details = err.Error()
		return result
	}
	if !complete {
		result.Status = StatusFail
		result.Message = "import_status.indexed is false"
		result.Details = "Every place is indexed but no run has confirmed it.\n" +
			"Hints:\n* Run 'geoidx index' to finalize the flag"
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckSearchIndex reports whether the search index exists and holds
// documents. A missing index only degrades search, so it never fails the
// database check.
func (c *Checker) CheckSearchIndex(path string) CheckResult {
	result := CheckResult{Name: "search_index", Required: false}

	backend := searchindex.Detect(path)
	if backend == "" {
		result.Status = StatusWarn
		result.Message = "search index not found"
		result.Details = "Run 'geoidx index' with compute.provider: tokens to build it"
		return result
	}

	idx, err := searchindex.Open(path, backend, searchindex.DefaultConfig())
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot open %s search index", backend)
		result.Details = err.Error()
		return result
	}
	defer func() { _ = idx.Close() }()

	docs := idx.Stats().DocumentCount
	if docs == 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s search index is empty", backend)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s, %d documents", backend, docs)
	return result
}
