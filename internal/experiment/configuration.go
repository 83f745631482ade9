// Package experiment runs the configuration sweep: every combination of
// tokenizer, scoring and field boosts gets its own index, run file and
// trec_eval report.
package experiment

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	"github.com/Aman-CERP/cranbench/internal/engine"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// Configuration is one point of the sweep.
type Configuration struct {
	Tokenizer  variant.Tokenizer
	Scoring    variant.Scoring
	TitleBoost float64
	BodyBoost  float64
}

// DefaultBoosts are the title/body pairs swept when none are configured.
var DefaultBoosts = []engine.Boosts{
	{Title: 1, Body: 1},
	{Title: 2, Body: 1},
	{Title: 1, Body: 2},
}

// ID returns the configuration identifier, for example
// EnglishAnalyzer_BM25_t2_c1. It is safe to use in file names.
func (c Configuration) ID() string {
	return c.Tokenizer.String() + "_" + c.Scoring.String() +
		"_t" + boostTag(c.TitleBoost) + "_c" + boostTag(c.BodyBoost)
}

// Boosts returns the configuration's field weights.
func (c Configuration) Boosts() engine.Boosts {
	return engine.Boosts{Title: c.TitleBoost, Body: c.BodyBoost}
}

// boostTag renders the shortest exact decimal form with "." replaced by "p",
// so 1.5 and 15 never share a tag.
func boostTag(v float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", "p")
}

// Enumerate returns the Cartesian product tokenizers × scorings × boosts in
// that nesting order. Duplicate combinations are dropped.
func Enumerate(tokenizers []variant.Tokenizer, scorings []variant.Scoring, boosts []engine.Boosts) []Configuration {
	seen := make(map[string]struct{})
	var out []Configuration
	for _, tok := range tokenizers {
		for _, sc := range scorings {
			for _, b := range boosts {
				c := Configuration{Tokenizer: tok, Scoring: sc, TitleBoost: b.Title, BodyBoost: b.Body}
				id := c.ID()
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

// IDs returns the identifiers of configs in order.
func IDs(configs []Configuration) []string {
	ids := make([]string, len(configs))
	for i, c := range configs {
		ids[i] = c.ID()
	}
	return ids
}

// Layout locates the artifact directories of a sweep.
type Layout struct {
	IndexRoot  string
	ResultsDir string
	ReportsDir string
}

// IndexPath is where the configuration's index is built.
func (l Layout) IndexPath(c Configuration) string {
	return filepath.Join(l.IndexRoot, "index_"+c.ID())
}

// ResultsPath is the configuration's TREC run file.
func (l Layout) ResultsPath(c Configuration) string {
	return filepath.Join(l.ResultsDir, c.ID()+"_results.txt")
}

// ReportPath is the configuration's trec_eval report.
func (l Layout) ReportPath(c Configuration) string {
	return filepath.Join(l.ReportsDir, aggregate.ReportName(c.ID()))
}

// dirs lists the directories in creation order.
func (l Layout) dirs() []string {
	return []string{l.IndexRoot, l.ResultsDir, l.ReportsDir}
}
