package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cranbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: the full sweep space is selected
	assert.Equal(t, variant.AllTokenizers(), cfg.Sweep.Tokenizers)
	assert.Equal(t, variant.AllScorings(), cfg.Sweep.Scorings)
	assert.Equal(t, []BoostPair{{1, 1}, {2, 1}, {1, 2}}, cfg.Sweep.Boosts)
	assert.Equal(t, 100, cfg.Sweep.TopK)
	assert.Equal(t, "cranbench", cfg.Sweep.RunTag)
	assert.Equal(t, 1, cfg.Sweep.Workers)

	assert.Equal(t, "trec_eval", cfg.Evaluator.Tool)
	assert.Equal(t, 2*time.Minute, cfg.Evaluator.Timeout)
	assert.Equal(t, "full", cfg.Summary.Layout)
	assert.Equal(t, "trec_reports", cfg.Artifacts.ReportsDir)
	assert.Equal(t, "ledger.db", filepath.Base(cfg.State.Ledger))
	assert.Empty(t, cfg.State.MetricsTextfile)

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	// Given: a file overriding part of the sweep
	path := writeConfig(t, `
version: 1
inputs:
  corpus: data/cran.all.1400
sweep:
  tokenizers: [english, WhitespaceAnalyzer]
  scorings: [bm25]
  boosts: ["1:1", "1.5:1"]
  workers: 4
evaluator:
  timeout: 30s
summary:
  layout: reduced
`)

	// When: loading it
	cfg, err := Load(path)

	// Then: listed keys change and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "data/cran.all.1400", cfg.Inputs.Corpus)
	assert.Equal(t, filepath.Join("cran", "cran.qry"), cfg.Inputs.Queries)
	assert.Equal(t, []variant.Tokenizer{variant.English, variant.Whitespace}, cfg.Sweep.Tokenizers)
	assert.Equal(t, []variant.Scoring{variant.BM25}, cfg.Sweep.Scorings)
	assert.Equal(t, []BoostPair{{1, 1}, {1.5, 1}}, cfg.Sweep.Boosts)
	assert.Equal(t, 4, cfg.Sweep.Workers)
	assert.Equal(t, 100, cfg.Sweep.TopK)
	assert.Equal(t, 30*time.Second, cfg.Evaluator.Timeout)
	assert.Equal(t, "reduced", cfg.Summary.Layout)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "sweep:\n  workers: 2\n  run_tag: fromfile\n")
	t.Setenv("CRANBENCH_WORKERS", "8")
	t.Setenv("CRANBENCH_SCORINGS", "tfidf,lmdirichlet")
	t.Setenv("CRANBENCH_BOOSTS", "3:1")
	t.Setenv("CRANBENCH_TREC_EVAL", "/opt/trec/trec_eval")
	t.Setenv("CRANBENCH_TREC_EVAL_TIMEOUT", "45s")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Sweep.Workers)
	assert.Equal(t, "fromfile", cfg.Sweep.RunTag)
	assert.Equal(t, []variant.Scoring{variant.TFIDF, variant.LMDirichlet}, cfg.Sweep.Scorings)
	assert.Equal(t, []BoostPair{{3, 1}}, cfg.Sweep.Boosts)
	assert.Equal(t, "/opt/trec/trec_eval", cfg.Evaluator.Tool)
	assert.Equal(t, 45*time.Second, cfg.Evaluator.Timeout)
}

func TestLoad_BadEnvOverride(t *testing.T) {
	t.Setenv("CRANBENCH_TOKENIZERS", "klingon")

	_, err := Load(writeConfig(t, "version: 1\n"))

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeConfigInvalid, cerrors.GetCode(err))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeConfigNotFound, cerrors.GetCode(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "sweep: [unclosed\n"))

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeConfigInvalid, cerrors.GetCode(err))
}

func TestLoad_UnknownVariantInFile(t *testing.T) {
	_, err := Load(writeConfig(t, "sweep:\n  scorings: [pagerank]\n"))

	require.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Sweep, cfg.Sweep)
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cranbench.yml"), []byte("version: 1\n"), 0o644))
	assert.Equal(t, filepath.Join(dir, "cranbench.yml"), FindFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cranbench.yaml"), []byte("version: 1\n"), 0o644))
	assert.Equal(t, filepath.Join(dir, "cranbench.yaml"), FindFile(dir), ".yaml wins over .yml")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative boost", func(c *Config) { c.Sweep.Boosts = []BoostPair{{-1, 1}} }},
		{"zero boost pair", func(c *Config) { c.Sweep.Boosts = []BoostPair{{0, 0}} }},
		{"NaN boost", func(c *Config) { c.Sweep.Boosts = []BoostPair{{math.NaN(), 1}, {math.NaN(), 1}} }},
		{"infinite boost", func(c *Config) { c.Sweep.Boosts = []BoostPair{{math.Inf(1), 1}} }},
		{"duplicate boost", func(c *Config) { c.Sweep.Boosts = []BoostPair{{2, 1}, {2, 1}} }},
		{"no boosts", func(c *Config) { c.Sweep.Boosts = nil }},
		{"no tokenizers", func(c *Config) { c.Sweep.Tokenizers = nil }},
		{"no scorings", func(c *Config) { c.Sweep.Scorings = nil }},
		{"zero top_k", func(c *Config) { c.Sweep.TopK = 0 }},
		{"zero workers", func(c *Config) { c.Sweep.Workers = 0 }},
		{"run tag with space", func(c *Config) { c.Sweep.RunTag = "my run" }},
		{"empty tool", func(c *Config) { c.Evaluator.Tool = "" }},
		{"negative timeout", func(c *Config) { c.Evaluator.Timeout = -time.Second }},
		{"negative retries", func(c *Config) { c.Evaluator.Retries = -1 }},
		{"bad layout", func(c *Config) { c.Summary.Layout = "wide" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"missing corpus", func(c *Config) { c.Inputs.Corpus = "" }},
		{"missing reports dir", func(c *Config) { c.Artifacts.ReportsDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, cerrors.ErrCodeConfigInvalid, cerrors.GetCode(err))
		})
	}
}

func TestValidate_ZeroTitleBoostAllowed(t *testing.T) {
	cfg := NewConfig()
	cfg.Sweep.Boosts = []BoostPair{{0, 1}}

	assert.NoError(t, cfg.Validate())
}

func TestParseBoostPair(t *testing.T) {
	b, err := ParseBoostPair(" 1.5 : 2 ")
	require.NoError(t, err)
	assert.Equal(t, BoostPair{1.5, 2}, b)
	assert.Equal(t, "1.5:2", b.String())

	for _, bad := range []string{"2", "a:1", "1:b", "", "NaN:1", "1:NaN", "Inf:1", "1:-Inf", "+Inf:+Inf"} {
		_, err := ParseBoostPair(bad)
		assert.Error(t, err, bad)
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	// Given: a customised config written to disk
	cfg := NewConfig()
	cfg.Sweep.Tokenizers = []variant.Tokenizer{variant.CustomDomain}
	cfg.Sweep.Boosts = []BoostPair{{2.5, 1}}
	path := filepath.Join(t.TempDir(), "cranbench.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	// When: it is loaded back
	loaded, err := Load(path)

	// Then: the sweep survives
	require.NoError(t, err)
	assert.Equal(t, cfg.Sweep, loaded.Sweep)
	assert.Equal(t, cfg.Evaluator, loaded.Evaluator)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CustomAnalyzer")
	assert.Contains(t, string(data), "2.5:1")
}
