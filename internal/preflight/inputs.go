package preflight

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Aman-CERP/cranbench/internal/corpus"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// CheckCorpus parses the corpus and reports what it holds.
func (c *Checker) CheckCorpus(path string) CheckResult {
	result := CheckResult{
		Name:     "corpus",
		Required: true,
	}

	records, err := corpus.ParseFile(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = suggestion(err)
		return result
	}
	if len(records) == 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s has no .I records", path)
		return result
	}

	st := corpus.Summarize(records)
	result.Message = fmt.Sprintf("%d records in %s", st.Records, path)
	if len(st.DuplicateIDs) > 0 {
		result.Status = StatusWarn
		result.Details = "duplicate ids: " + strings.Join(st.DuplicateIDs, ", ")
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckJudgments parses the queries and qrels and warns when judgments name
// queries the query file does not carry.
func (c *Checker) CheckJudgments(queriesPath, qrelsPath string) CheckResult {
	result := CheckResult{
		Name:     "judgments",
		Required: true,
	}

	queries, err := corpus.ParseQueriesFile(queriesPath, corpus.Identity)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = suggestion(err)
		return result
	}
	qrels, err := corpus.LoadQrelsFile(qrelsPath)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = suggestion(err)
		return result
	}

	judged, orphaned := corpus.Coverage(queries, qrels)
	result.Message = fmt.Sprintf("%d queries, %d judged, %d pairs", len(queries), judged, qrels.Pairs())
	switch {
	case judged == 0:
		result.Status = StatusFail
		result.Details = "no query has a judgment; check that the qrels belong to this query file"
	case len(orphaned) > 0:
		result.Status = StatusWarn
		result.Details = "judgments for unknown queries: " + strings.Join(orphaned, ", ")
	default:
		result.Status = StatusPass
	}
	return result
}

func suggestion(err error) string {
	var be *cerrors.BenchError
	if errors.As(err, &be) {
		return be.Suggestion
	}
	return ""
}
