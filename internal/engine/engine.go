// Package engine builds and queries the per-configuration search indexes.
//
// The IndexEngine interface is what the experiment pipeline consumes; the
// bleve implementation in this package is the one cranbench ships. Each index
// is built for one tokenizer variant. TF-IDF and BM25 are ranked natively by
// bleve; the language-model variants rescore bleve's candidate set with
// per-field term statistics recorded at build time.
package engine

import (
	"context"
	"strings"

	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// Field names in the index.
const (
	FieldID           = "id"
	FieldTitle        = "title"
	FieldAuthor       = "author"
	FieldBibliography = "bibliography"
	FieldBody         = "body"
)

// ReservedChars are characters the query grammar treats as wildcards.
// Callers are expected to strip them before searching.
const ReservedChars = "?*"

// BuildOptions select the analysis chain and ranking model of a new index.
type BuildOptions struct {
	Tokenizer variant.Tokenizer
	Scoring   variant.Scoring
}

// Boosts weight a match in the title against a match in the body.
type Boosts struct {
	Title float64
	Body  float64
}

// DefaultBoosts gives both fields equal weight.
var DefaultBoosts = Boosts{Title: 1, Body: 1}

// Filters restrict results to documents whose author or title contain the
// given terms. Filters do not affect scores. Empty values are ignored.
type Filters struct {
	Author string
	Title  string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return strings.TrimSpace(f.Author) == "" && strings.TrimSpace(f.Title) == ""
}

// Request is one ranked search.
type Request struct {
	Scoring variant.Scoring
	Query   string
	Boosts  Boosts
	Filters Filters
	TopK    int

	// IncludeStored loads title, author and body into each hit.
	IncludeStored bool
}

// Hit is one ranked document.
type Hit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title,omitempty"`
	Author string  `json:"author,omitempty"`
	Body   string  `json:"body,omitempty"`
}

// Result is the outcome of a search.
type Result struct {
	Hits []Hit
	// Total is the number of matching documents before TopK truncation.
	Total uint64
}

// IndexEngine builds indexes over a corpus.
type IndexEngine interface {
	// Build replaces whatever index exists at path with a fresh one holding
	// records. An empty path builds an in-memory index.
	Build(ctx context.Context, path string, records []corpus.Record, opts BuildOptions) (Index, error)

	// Open loads an index previously written by Build.
	Open(path string) (Index, error)
}

// Index is a built, queryable index.
type Index interface {
	Search(ctx context.Context, req Request) (*Result, error)

	// Normalize runs text through the index's tokenizer and re-joins the
	// tokens with single spaces.
	Normalize(text string) string

	Options() BuildOptions
	DocCount() (uint64, error)
	Close() error
}
