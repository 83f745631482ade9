package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/Aman-CERP/cranbench/internal/variant"
)

const (
	// CranStopFilterName is the registry name of the Cranfield stop filter.
	CranStopFilterName = "cran_stop"

	whitespaceAnalyzerName = "cran_whitespace"
	customAnalyzerName     = "cran_custom"
)

// scoringModelBM25 is bleve's name for BM25. An empty model selects bleve's
// default TF-IDF.
const scoringModelBM25 = "bm25"

func init() {
	_ = registry.RegisterCharFilter(FoldCharFilterName, foldCharFilterConstructor)
	_ = registry.RegisterTokenFilter(CranStopFilterName, cranStopFilterConstructor)
}

// CranStopWords is the stop list of the CustomDomain tokenizer: general
// English function words, without the domain terms a stock list would drop.
var CranStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "almost", "alone",
	"along", "already", "also", "although", "always", "among", "an", "and", "another",
	"any", "anybody", "anyone", "anything", "anywhere", "are", "as", "at", "be",
	"because", "been", "before", "being", "between", "both", "but", "by", "can",
	"could", "did", "do", "does", "doing", "down", "during", "each", "few", "for",
	"from", "further", "had", "has", "have", "having", "he", "her", "here", "hers",
	"him", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"me", "more", "most", "my", "myself", "no", "nor", "not", "of", "off", "on",
	"once", "only", "or", "other", "our", "ours", "ourselves", "out", "over", "own",
	"same", "she", "should", "so", "some", "such", "than", "that", "the", "their",
	"theirs", "them", "themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "very", "was", "we", "were",
	"what", "when", "where", "which", "while", "who", "whom", "why", "with", "you",
	"your", "yours", "yourself", "yourselves",
}

// analyzerSpec describes how one tokenizer variant is realised in bleve.
// builtin analyzers are referenced by name; custom ones are added to the
// index mapping.
type analyzerSpec struct {
	name   string
	custom map[string]interface{}
}

var analyzerSpecs = map[variant.Tokenizer]analyzerSpec{
	variant.Standard: {name: standard.Name},
	variant.English:  {name: en.AnalyzerName},
	variant.Simple:   {name: simple.Name},
	variant.Whitespace: {
		name: whitespaceAnalyzerName,
		custom: map[string]interface{}{
			"type":      custom.Name,
			"tokenizer": whitespace.Name,
		},
	},
	variant.CustomDomain: {
		name: customAnalyzerName,
		custom: map[string]interface{}{
			"type":         custom.Name,
			"char_filters": []string{FoldCharFilterName},
			"tokenizer":    unicodetok.Name,
			"token_filters": []string{
				lowercase.Name,
				CranStopFilterName,
				porter.Name,
			},
		},
	},
}

// AnalyzerName returns the bleve analyzer name used for tok.
func AnalyzerName(tok variant.Tokenizer) (string, error) {
	spec, ok := analyzerSpecs[tok]
	if !ok {
		return "", fmt.Errorf("no analyzer for tokenizer %s", tok)
	}
	return spec.name, nil
}

func scoringModel(s variant.Scoring) string {
	if s == variant.BM25 {
		return scoringModelBM25
	}
	return ""
}

// newIndexMapping builds the static document mapping for one configuration.
// id is indexed verbatim; the four text sections use the variant's analyzer.
// The bibliography is searchable but not stored.
func newIndexMapping(opts BuildOptions) (*mapping.IndexMappingImpl, error) {
	spec, ok := analyzerSpecs[opts.Tokenizer]
	if !ok {
		return nil, fmt.Errorf("no analyzer for tokenizer %s", opts.Tokenizer)
	}

	im := bleve.NewIndexMapping()
	if spec.custom != nil {
		if err := im.AddCustomAnalyzer(spec.name, spec.custom); err != nil {
			return nil, fmt.Errorf("failed to add analyzer %s: %w", spec.name, err)
		}
	}

	doc := bleve.NewDocumentStaticMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	idField.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldID, idField)

	textFields := []struct {
		name  string
		store bool
	}{
		{FieldTitle, true},
		{FieldAuthor, true},
		{FieldBibliography, false},
		{FieldBody, true},
	}
	for _, f := range textFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = spec.name
		fm.Store = f.store
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f.name, fm)
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = spec.name
	im.ScoringModel = scoringModel(opts.Scoring)

	return im, nil
}

var (
	analyzerMu    sync.Mutex
	analyzerCache = map[variant.Tokenizer]analysis.Analyzer{}
)

// analyzerFor returns a ready analyzer for tok without creating an index.
func analyzerFor(tok variant.Tokenizer) (analysis.Analyzer, error) {
	analyzerMu.Lock()
	defer analyzerMu.Unlock()

	if a, ok := analyzerCache[tok]; ok {
		return a, nil
	}

	im, err := newIndexMapping(BuildOptions{Tokenizer: tok})
	if err != nil {
		return nil, err
	}
	a := im.AnalyzerNamed(im.DefaultAnalyzer)
	if a == nil {
		return nil, fmt.Errorf("analyzer %s not found", im.DefaultAnalyzer)
	}
	analyzerCache[tok] = a
	return a, nil
}

// Terms analyzes text with the analyzer of tok.
func Terms(tok variant.Tokenizer, text string) ([]string, error) {
	a, err := analyzerFor(tok)
	if err != nil {
		return nil, err
	}
	return termsOf(a, text), nil
}

func termsOf(a analysis.Analyzer, text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	stream := a.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

func cranStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	words := make(map[string]struct{}, len(CranStopWords))
	for _, w := range CranStopWords {
		words[w] = struct{}{}
	}
	return &cranStopFilter{words: words}, nil
}

// cranStopFilter drops tokens found in CranStopWords. It expects lowercased
// input.
type cranStopFilter struct {
	words map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *cranStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if _, stop := f.words[string(tok.Term)]; !stop {
			out = append(out, tok)
		}
	}
	return out
}
