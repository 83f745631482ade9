package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/cranbench/internal/variant"
)

func TestAnalyzerName_CoversEveryTokenizer(t *testing.T) {
	for _, tok := range variant.AllTokenizers() {
		name, err := AnalyzerName(tok)
		require.NoError(t, err, tok.String())
		assert.NotEmpty(t, name)
	}

	_, err := AnalyzerName(variant.Tokenizer(99))
	assert.Error(t, err)
}

func TestTerms_PerTokenizer(t *testing.T) {
	t.Run("whitespace keeps case and punctuation", func(t *testing.T) {
		terms, err := Terms(variant.Whitespace, "Mach Number, flow")
		require.NoError(t, err)
		assert.Equal(t, []string{"Mach", "Number,", "flow"}, terms)
	})

	t.Run("simple lowercases letters only", func(t *testing.T) {
		terms, err := Terms(variant.Simple, "Mach3 Flow")
		require.NoError(t, err)
		assert.Equal(t, []string{"mach", "flow"}, terms)
	})

	t.Run("standard drops english stop words", func(t *testing.T) {
		terms, err := Terms(variant.Standard, "The Flow")
		require.NoError(t, err)
		assert.Equal(t, []string{"flow"}, terms)
	})

	t.Run("custom folds accents and drops its stop list", func(t *testing.T) {
		terms, err := Terms(variant.CustomDomain, "The Kármán street")
		require.NoError(t, err)
		assert.Contains(t, terms, "karman")
		assert.NotContains(t, terms, "the")
	})
}

func TestFoldASCII(t *testing.T) {
	assert.Equal(t, "Karman naive", FoldASCII("Kármán naïve"))
	assert.Equal(t, "plain", FoldASCII("plain"))
}

func TestCachedNormalizer(t *testing.T) {
	n, err := NewCachedNormalizer(variant.Standard, 2)
	require.NoError(t, err)

	assert.Equal(t, "heat transfer", n.Normalize("The Heat Transfer"))
	assert.Equal(t, "heat transfer", n.Func()("The Heat Transfer"))
	assert.Equal(t, 1, n.Len())

	n.Normalize("a")
	n.Normalize("b")
	assert.Equal(t, 2, n.Len())
}

func TestFieldStats_LanguageModelScores(t *testing.T) {
	a, err := analyzerFor(variant.English)
	require.NoError(t, err)
	fs := collectFieldStats(a, sampleRecords())

	boosts := Boosts{Title: 1, Body: 1}

	// a document without any query term scores zero
	assert.Zero(t, fs.score(variant.LMDirichlet, "1", []string{"shear"}, boosts))
	// unknown documents score zero
	assert.Zero(t, fs.score(variant.LMJelinekMercer, "404", []string{"shear"}, boosts))

	jm := fs.score(variant.LMJelinekMercer, "2", []string{"shear"}, boosts)
	assert.Greater(t, jm, 0.0)

	// doubling the title boost raises a document matching in the title
	boosted := fs.score(variant.LMJelinekMercer, "2", []string{"shear"}, Boosts{Title: 2, Body: 1})
	assert.Greater(t, boosted, jm)

	// native variants are not scored here
	assert.Zero(t, termScore(variant.BM25, 1, 10, 0.1))
}
