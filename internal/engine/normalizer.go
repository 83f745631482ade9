package engine

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// DefaultNormalizerCacheSize bounds the number of memoized query texts per
// tokenizer.
const DefaultNormalizerCacheSize = 4096

// CachedNormalizer analyzes text with one tokenizer and memoizes the result.
// Every configuration sharing a tokenizer normalizes the same query set, so
// a sweep analyzes each query once per tokenizer.
type CachedNormalizer struct {
	tokenizer variant.Tokenizer
	cache     *lru.Cache[string, string]
}

// NewCachedNormalizer creates a normalizer for tok.
func NewCachedNormalizer(tok variant.Tokenizer, cacheSize int) (*CachedNormalizer, error) {
	if _, err := analyzerFor(tok); err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		cacheSize = DefaultNormalizerCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedNormalizer{tokenizer: tok, cache: cache}, nil
}

// Normalize returns the analyzed tokens of text joined by single spaces.
func (n *CachedNormalizer) Normalize(text string) string {
	if out, ok := n.cache.Get(text); ok {
		return out
	}
	a, err := analyzerFor(n.tokenizer)
	if err != nil {
		return text
	}
	out := strings.Join(termsOf(a, text), " ")
	n.cache.Add(text, out)
	return out
}

// Func adapts n to corpus.Normalizer.
func (n *CachedNormalizer) Func() corpus.Normalizer {
	return n.Normalize
}

// Len returns the number of cached entries.
func (n *CachedNormalizer) Len() int {
	return n.cache.Len()
}
