package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: a configuration starts building
	r.UpdateProgress(ProgressEvent{
		Stage:   StageBuilding,
		Current: 3,
		Total:   40,
		Config:  "EnglishAnalyzer_BM25_t2_c1",
	})

	// Then: stage tag, count and configuration are printed on one line
	assert.Equal(t, "[BUILD] 3/40 - EnglishAnalyzer_BM25_t2_c1\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_MessageAndMAP(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageWriting, Current: 1, Total: 2, Config: "x", Message: "225 queries"})
	r.UpdateProgress(ProgressEvent{Stage: StageEvaluating, Current: 2, Total: 2, Config: "x", MAP: 0.41234, HasMAP: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[WRITE] 1/2 - x: 225 queries", lines[0])
	assert.Equal(t, "[EVAL] 2/2 - x (map 0.4123)", lines[1])
}

func TestPlainRenderer_UpdateProgress_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// Events with no total and no text print nothing
	r.UpdateProgress(ProgressEvent{Stage: StageParsing})
	assert.Empty(t, buf.String())

	r.UpdateProgress(ProgressEvent{Stage: StageParsing, Message: "cran.all.1400"})
	assert.Equal(t, "[PARSE] cran.all.1400\n", buf.String())
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{Config: "SimpleAnalyzer_TFIDF_t1_c1", Err: errors.New("trec_eval exited with status 1")})
	r.AddError(ErrorEvent{Err: errors.New("3 queries failed"), IsWarn: true})

	out := buf.String()
	assert.Contains(t, out, "ERROR: SimpleAnalyzer_TFIDF_t1_c1: trec_eval exited with status 1\n")
	assert.Contains(t, out, "WARN: 3 queries failed\n")
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a sweep with one failure and one missing evaluation
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing
	r.Complete(CompletionStats{
		Configurations: 5,
		Succeeded:      3,
		Failed:         1,
		Unevaluated:    1,
		Duration:       12 * time.Second,
		BestConfig:     "EnglishAnalyzer_BM25_t2_c1",
		BestMAP:        0.4012,
		Stages:         StageTimings{Build: time.Second, Evaluate: 2 * time.Second},
	})

	// Then: counts, best configuration and stage breakdown are printed
	out := buf.String()
	assert.Contains(t, out, "Complete: 3/5 configurations evaluated in 12s (1 failed, 1 not evaluated)")
	assert.Contains(t, out, "Best: EnglishAnalyzer_BM25_t2_c1 (map 0.4012)")
	assert.Contains(t, out, "Stage Breakdown:")
	assert.Contains(t, out, "Evaluate: 2s")
	assert.NotContains(t, out, "\x1b[")
}

func TestPlainRenderer_CompleteWithoutTimings(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{Configurations: 1, Succeeded: 1})

	assert.NotContains(t, buf.String(), "Stage Breakdown")
	assert.NotContains(t, buf.String(), "failed")
}

func TestPlainRenderer_StartStop(t *testing.T) {
	r := NewPlainRenderer(NewConfig(&bytes.Buffer{}))

	require.NoError(t, r.Start(context.Background()))
	assert.NoError(t, r.Stop())
}

func TestPlainRenderer_ConcurrentUse(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.UpdateProgress(ProgressEvent{Stage: StageSearching, Current: n, Total: 8, Config: "c"})
			r.AddError(ErrorEvent{Err: errors.New("x"), IsWarn: true})
		}(i)
	}
	wg.Wait()

	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 16)
}
