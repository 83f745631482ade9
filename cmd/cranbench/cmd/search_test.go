package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/engine"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/experiment"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// countingEngine records how often the index is opened or built.
type countingEngine struct {
	opens, builds int
}

func (e *countingEngine) Build(context.Context, string, []corpus.Record, engine.BuildOptions) (engine.Index, error) {
	e.builds++
	return nil, cerrors.IndexBuildError("not built", nil)
}

func (e *countingEngine) Open(string) (engine.Index, error) {
	e.opens++
	return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "not opened", nil)
}

func TestSearchCmd_OneShot(t *testing.T) {
	// Given: a workspace without any index
	dir := workspace(t, "")

	// When: searching once
	out, err := execute(t, newSearchCmd(), "propeller slipstream", "--tokenizer", "english", "--scoring", "bm25")

	// Then: the index is built and the matching document is printed
	require.NoError(t, err)
	assert.Contains(t, out, "experimental investigation")
	assert.Contains(t, out, "of 1 matching")
	assert.DirExists(t, filepath.Join(dir, "indexes", "index_EnglishAnalyzer_BM25_t1_c1"))

	// When: searching again, the built index is reused
	out, err = execute(t, newSearchCmd(), "shear", "--tokenizer", "english", "--scoring", "bm25")
	require.NoError(t, err)
	assert.Contains(t, out, "of 2 matching")
}

func TestSearchCmd_JSONFormat(t *testing.T) {
	workspace(t, "")

	out, err := execute(t, newSearchCmd(), "flat plate", "--scoring", "tfidf", "--format", "json")

	require.NoError(t, err)
	var res searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "flat plate", res.Query)
	assert.Equal(t, uint64(2), res.Total)
	require.Len(t, res.Hits, 2)
	ids := []string{res.Hits[0].ID, res.Hits[1].ID}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)
	assert.NotEmpty(t, res.Hits[0].Title)
}

func TestSearchCmd_LoopReadsStdin(t *testing.T) {
	workspace(t, "")
	cmd := newSearchCmd()
	cmd.SetIn(strings.NewReader("slipstream\n\n:q\nshear\n"))

	out, err := execute(t, cmd, "--tokenizer", "simple")

	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "matching"), "queries after :q are not run")
	assert.NotContains(t, out, "cranbench> ", "no prompt without a terminal")
}

func TestSearchCmd_WriteRun(t *testing.T) {
	dir := workspace(t, "")
	runPath := filepath.Join(dir, "one.txt")

	out, err := execute(t, newSearchCmd(), "--tokenizer", "whitespace", "--scoring", "bm25", "--write-run", runPath)

	require.NoError(t, err)
	assert.Contains(t, out, "for 2 queries written to")
	data, err := os.ReadFile(runPath)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fields := strings.Fields(line)
		require.Len(t, fields, 6, line)
		assert.Equal(t, "Q0", fields[1])
		assert.Equal(t, "cranbench", fields[5])
	}
}

func TestSearchCmd_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero boosts", []string{"wing", "--title-boost", "0", "--body-boost", "0"}},
		{"negative boost", []string{"wing", "--title-boost", "-1"}},
		{"unknown tokenizer", []string{"wing", "--tokenizer", "klingon"}},
		{"unknown scoring", []string{"wing", "--scoring", "pagerank"}},
		{"unknown format", []string{"wing", "--format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t, "")

			_, err := execute(t, newSearchCmd(), tt.args...)

			assert.Error(t, err)
		})
	}
}

func TestOpenOrBuild_WaitsForIndexLock(t *testing.T) {
	// Given: a sweep holding the lock on the configuration's index
	cfg := config.NewConfig()
	cfg.Artifacts.IndexRoot = t.TempDir()
	c := experiment.Configuration{Tokenizer: variant.English, Scoring: variant.BM25, TitleBoost: 1, BodyBoost: 1}
	held := flock.New(artifactLayout(cfg).IndexPath(c) + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = held.Unlock() })

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	eng := &countingEngine{}

	// When: a search tries to reuse that index
	_, err = openOrBuild(ctx, io.Discard, eng, cfg, c, false)

	// Then: it gives up without touching the index mid-build
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeIndexBuild, cerrors.GetCode(err))
	assert.Zero(t, eng.opens, "index must not be opened while locked")
	assert.Zero(t, eng.builds)
}
