// Package variant defines the closed sets of tokenizer and scoring variants a
// sweep can combine. Each variant maps to a stable label used in artifact
// names and summary rows.
package variant

import (
	"fmt"
	"strings"
)

// Tokenizer selects the text analysis chain applied to documents and queries.
type Tokenizer int

const (
	Standard Tokenizer = iota
	English
	Simple
	Whitespace
	CustomDomain
)

// Scoring selects the ranking function.
type Scoring int

const (
	TFIDF Scoring = iota
	BM25
	LMDirichlet
	LMJelinekMercer
)

var tokenizerLabels = map[Tokenizer]string{
	Standard:     "StandardAnalyzer",
	English:      "EnglishAnalyzer",
	Simple:       "SimpleAnalyzer",
	Whitespace:   "WhitespaceAnalyzer",
	CustomDomain: "CustomAnalyzer",
}

var scoringLabels = map[Scoring]string{
	TFIDF:           "TFIDF",
	BM25:            "BM25",
	LMDirichlet:     "LMDirichlet",
	LMJelinekMercer: "LMJelinekMercer",
}

// short aliases accepted on the command line and in config files
var tokenizerAliases = map[string]Tokenizer{
	"standard":   Standard,
	"english":    English,
	"simple":     Simple,
	"whitespace": Whitespace,
	"custom":     CustomDomain,
}

var scoringAliases = map[string]Scoring{
	"tfidf":       TFIDF,
	"classic":     TFIDF,
	"bm25":        BM25,
	"lmdirichlet": LMDirichlet,
	"dirichlet":   LMDirichlet,
	"lmjm":        LMJelinekMercer,
	"jm":          LMJelinekMercer,
}

// AllTokenizers returns every tokenizer in declaration order.
func AllTokenizers() []Tokenizer {
	return []Tokenizer{Standard, English, Simple, Whitespace, CustomDomain}
}

// AllScorings returns every scoring variant in declaration order.
func AllScorings() []Scoring {
	return []Scoring{TFIDF, BM25, LMDirichlet, LMJelinekMercer}
}

// String returns the label used in file names.
func (t Tokenizer) String() string {
	if l, ok := tokenizerLabels[t]; ok {
		return l
	}
	return fmt.Sprintf("Tokenizer(%d)", int(t))
}

// String returns the label used in file names.
func (s Scoring) String() string {
	if l, ok := scoringLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("Scoring(%d)", int(s))
}

// Native reports whether the engine ranks with this variant directly,
// as opposed to rescoring candidates with a language model.
func (s Scoring) Native() bool {
	return s == TFIDF || s == BM25
}

// ParseTokenizer accepts a label ("EnglishAnalyzer") or alias ("english"),
// case-insensitively.
func ParseTokenizer(s string) (Tokenizer, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := tokenizerAliases[key]; ok {
		return t, nil
	}
	for t, l := range tokenizerLabels {
		if strings.ToLower(l) == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tokenizer %q", s)
}

// ParseScoring accepts a label ("BM25") or alias ("jm"), case-insensitively.
func ParseScoring(s string) (Scoring, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if v, ok := scoringAliases[key]; ok {
		return v, nil
	}
	for v, l := range scoringLabels {
		if strings.ToLower(l) == key {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown scoring %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tokenizer) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tokenizer) UnmarshalText(b []byte) error {
	v, err := ParseTokenizer(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Scoring) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scoring) UnmarshalText(b []byte) error {
	v, err := ParseScoring(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
