package corpus

import (
	"sort"
	"strings"
)

// Stats summarises a parsed corpus.
type Stats struct {
	Records      int
	EmptyTitles  int
	EmptyBodies  int
	DuplicateIDs []string
	BodyTokens   int
}

// Summarize computes Stats for records. BodyTokens counts whitespace
// separated words, not analyzer tokens.
func Summarize(records []Record) Stats {
	st := Stats{Records: len(records)}
	seen := make(map[string]int, len(records))

	for _, r := range records {
		seen[r.ID]++
		if r.Title == "" {
			st.EmptyTitles++
		}
		if r.Body == "" {
			st.EmptyBodies++
		}
		st.BodyTokens += countWords(r.Body)
	}

	for id, n := range seen {
		if n > 1 {
			st.DuplicateIDs = append(st.DuplicateIDs, id)
		}
	}
	sort.Strings(st.DuplicateIDs)

	return st
}

// Coverage reports how a query set lines up with judgments: queries that have
// at least one judged document, and query ids in the judgments that no query
// carries.
func Coverage(queries []Query, j Judgments) (judged int, orphaned []string) {
	ids := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		ids[q.ID] = struct{}{}
		if len(j[q.ID]) > 0 {
			judged++
		}
	}
	for qid := range j {
		if _, ok := ids[qid]; !ok {
			orphaned = append(orphaned, qid)
		}
	}
	sort.Strings(orphaned)
	return judged, orphaned
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
