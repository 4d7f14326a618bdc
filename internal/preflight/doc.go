// Package preflight validates the host and the database around an index run.
//
// Host checks (RunAll) cover free disk space next to the database, write
// access to its directory and the open file limit for the worker pool.
//
// CheckDatabase answers whether a database is ready to serve: it runs an
// ordered list of checks and stops at the first required failure, printing
// hints for that failure only:
//
//	checker := preflight.New(preflight.WithTitle("geoidx Database Check"))
//	results := checker.CheckDatabase(ctx, "/srv/nominatim.db", scope, "")
//	checker.PrintResults(results)
//	if checker.HasCriticalFailures(results) {
//	    os.Exit(1)
//	}
package preflight
