// Package corpus reads the Cranfield collection: the document corpus, the
// query set and the relevance judgments.
//
// The record format is line oriented. A ".I <id>" line opens a record and the
// marker lines ".T", ".A", ".B" and ".W" select the title, author,
// bibliography and body sections. Text lines are joined with single spaces
// into the currently selected section.
package corpus

// Record is one corpus document. Unassigned sections are empty strings.
type Record struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Bibliography string `json:"bibliography"`
	Body         string `json:"body"`
}

// Query is one information need. ID is assigned sequentially from "1" in
// encounter order; Text has already been passed through the normalizer of the
// tokenizer it was parsed for.
type Query struct {
	ID   string
	Text string
}

// Judgments maps query id to document id to relevance grade. A missing pair
// means the document was not judged for that query.
type Judgments map[string]map[string]int

// Normalizer turns raw query text into the token stream of one tokenizer,
// re-joined with single spaces.
type Normalizer func(string) string

// Identity is a Normalizer that leaves text untouched.
func Identity(s string) string { return s }

// Grade returns the grade of doc for query and whether it was judged.
func (j Judgments) Grade(query, doc string) (int, bool) {
	docs, ok := j[query]
	if !ok {
		return 0, false
	}
	g, ok := docs[doc]
	return g, ok
}

// Relevant returns the number of documents judged with a positive grade for
// query.
func (j Judgments) Relevant(query string) int {
	n := 0
	for _, g := range j[query] {
		if g > 0 {
			n++
		}
	}
	return n
}

// Pairs returns the total number of judged (query, document) pairs.
func (j Judgments) Pairs() int {
	n := 0
	for _, docs := range j {
		n += len(docs)
	}
	return n
}
