// Package preflight validates the environment before a sweep: the inputs
// parse, the judgments line up with the queries, the artifact directories are
// writable and trec_eval can be found.
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Plan{Corpus: "cran/cran.all.1400", ...})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
