package engine

import (
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldCharFilterName is the registry name of the ASCII folding char filter.
const FoldCharFilterName = "cran_ascii_fold"

func foldCharFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.CharFilter, error) {
	return &foldCharFilter{}, nil
}

// foldCharFilter strips combining marks after canonical decomposition, so
// "Kármán" and "Karman" index to the same term.
type foldCharFilter struct{}

// Filter implements analysis.CharFilter.
func (f *foldCharFilter) Filter(input []byte) []byte {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.Bytes(t, input)
	if err != nil {
		return input
	}
	return out
}

// FoldASCII applies the folding char filter to s.
func FoldASCII(s string) string {
	return string((&foldCharFilter{}).Filter([]byte(s)))
}
