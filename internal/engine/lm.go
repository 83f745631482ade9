package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/blevesearch/bleve/v2/analysis"

	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// Language model smoothing parameters.
const (
	DirichletMu         = 1500.0
	JelinekMercerLambda = 0.7
)

const fieldStatsFile = "fieldstats.json"

// rankedFields are the fields a query is matched against.
var rankedFields = []string{FieldTitle, FieldBody}

type fieldTotals struct {
	Tokens int64            `json:"tokens"`
	CF     map[string]int64 `json:"cf"`
}

type docFields struct {
	Len map[string]int            `json:"len"`
	TF  map[string]map[string]int `json:"tf"`
}

// fieldStats holds what bleve does not expose: collection term frequencies
// and per-document field lengths for the ranked fields.
type fieldStats struct {
	Fields map[string]*fieldTotals `json:"fields"`
	Docs   map[string]*docFields   `json:"docs"`
}

func collectFieldStats(a analysis.Analyzer, records []corpus.Record) *fieldStats {
	fs := &fieldStats{
		Fields: make(map[string]*fieldTotals, len(rankedFields)),
		Docs:   make(map[string]*docFields, len(records)),
	}
	for _, f := range rankedFields {
		fs.Fields[f] = &fieldTotals{CF: make(map[string]int64)}
	}

	for _, r := range records {
		df := &docFields{
			Len: make(map[string]int, len(rankedFields)),
			TF:  make(map[string]map[string]int, len(rankedFields)),
		}
		texts := map[string]string{FieldTitle: r.Title, FieldBody: r.Body}
		for _, f := range rankedFields {
			terms := termsOf(a, texts[f])
			tf := make(map[string]int, len(terms))
			for _, t := range terms {
				tf[t]++
				fs.Fields[f].CF[t]++
			}
			fs.Fields[f].Tokens += int64(len(terms))
			df.Len[f] = len(terms)
			df.TF[f] = tf
		}
		fs.Docs[r.ID] = df
	}

	return fs
}

func (fs *fieldStats) save(path string) error {
	data, err := json.Marshal(fs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadFieldStats(path string) (*fieldStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fs fieldStats
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("corrupt %s: %w", fieldStatsFile, err)
	}
	return &fs, nil
}

// collectionProb is the smoothed probability of term in field over the whole
// collection.
func (fs *fieldStats) collectionProb(field, term string) float64 {
	tot := fs.Fields[field]
	if tot == nil {
		return 0
	}
	return float64(tot.CF[term]+1) / float64(tot.Tokens+1)
}

// score returns the query likelihood of doc under model, summed over the
// ranked fields and weighted by boosts. Only terms present in a field
// contribute, and no term contributes a negative amount.
func (fs *fieldStats) score(model variant.Scoring, doc string, terms []string, boosts Boosts) float64 {
	df := fs.Docs[doc]
	if df == nil {
		return 0
	}

	weights := map[string]float64{FieldTitle: boosts.Title, FieldBody: boosts.Body}
	total := 0.0
	for _, f := range rankedFields {
		dl := float64(df.Len[f])
		if dl == 0 {
			continue
		}
		fieldScore := 0.0
		for _, t := range terms {
			tf := float64(df.TF[f][t])
			if tf == 0 {
				continue
			}
			p := fs.collectionProb(f, t)
			fieldScore += termScore(model, tf, dl, p)
		}
		total += weights[f] * fieldScore
	}
	return total
}

func termScore(model variant.Scoring, tf, dl, p float64) float64 {
	var s float64
	switch model {
	case variant.LMDirichlet:
		s = math.Log(1+tf/(DirichletMu*p)) + math.Log(DirichletMu/(dl+DirichletMu))
	case variant.LMJelinekMercer:
		s = math.Log(1 + ((1-JelinekMercerLambda)*tf/dl)/(JelinekMercerLambda*p))
	default:
		return 0
	}
	return math.Max(0, s)
}
