package aggregate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

func report(mapValue string, extra ...string) string {
	lines := []string{
		"runid                 \tall\tcranbench",
		"num_q                 \tall\t225",
		"num_rel               \tall\t1837",
		"num_rel_ret           \tall\t1469",
	}
	if mapValue != "" {
		lines = append(lines, "map                   \tall\t"+mapValue)
	}
	lines = append(lines,
		"P_10                  \tall\t0.2813",
		"P_10                  \t1\t0.9000",
	)
	lines = append(lines, extra...)
	return strings.Join(lines, "\n") + "\n"
}

func writeReports(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		file string
		want Identity
	}{
		{"EnglishAnalyzer_BM25_t2_c1_trec.txt", Identity{
			ID: "EnglishAnalyzer_BM25_t2_c1", Tokenizer: "EnglishAnalyzer", Scoring: "BM25",
			Flags: BoostFlags{T2: true, C1: true},
		}},
		{"StandardAnalyzer_TFIDF_T1_C1_trec.txt", Identity{
			ID: "StandardAnalyzer_TFIDF_T1_C1", Tokenizer: "StandardAnalyzer", Scoring: "TFIDF",
			Flags: BoostFlags{T1: true, C1: true},
		}},
		{"SimpleAnalyzer_trec.txt", Identity{ID: "SimpleAnalyzer", Tokenizer: "SimpleAnalyzer", Scoring: "Unknown"}},
		{"WhitespaceAnalyzer_LMDirichlet_t1p5_c1_trec.txt", Identity{
			ID: "WhitespaceAnalyzer_LMDirichlet_t1p5_c1", Tokenizer: "WhitespaceAnalyzer", Scoring: "LMDirichlet",
			Flags: BoostFlags{C1: true},
		}},
		{"notes.txt", Identity{ID: "notes", Tokenizer: "notes", Scoring: "Unknown"}},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIdentity(tt.file))
		})
	}
}

func TestParseReport_AllRowsOnlyLastWins(t *testing.T) {
	// Given: a report repeating map and carrying a per-query P_10
	in := report("0.1000", "map                   \tall\t0.4321")

	// When: parsing for map and P_10
	got, err := ParseReport(strings.NewReader(in), []string{MetricMAP, MetricP10})

	// Then: only "all" rows are kept and the last map wins
	require.NoError(t, err)
	assert.Equal(t, map[string]string{MetricMAP: "0.4321", MetricP10: "0.2813"}, got)
}

func TestRecall(t *testing.T) {
	assert.InDelta(t, 0.5, Recall(map[string]string{MetricNumRel: "10", MetricNumRelRet: "5"}), 1e-9)
	assert.Zero(t, Recall(map[string]string{MetricNumRel: "0", MetricNumRelRet: "5"}))
	assert.Zero(t, Recall(map[string]string{MetricNumRelRet: "5"}))
	assert.Zero(t, Recall(map[string]string{MetricNumRel: "x", MetricNumRelRet: "5"}))
	assert.Zero(t, Recall(nil))
}

func TestAggregate_EmptyDirectoryYieldsNoRows(t *testing.T) {
	rows, err := Aggregate(t.TempDir(), Options{})

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAggregate_UnreadableDirectoryIsAggregationError(t *testing.T) {
	_, err := Aggregate(filepath.Join(t.TempDir(), "missing"), Options{})

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeReportDir, cerrors.GetCode(err))
}

func TestAggregate_SortsByMAPStable(t *testing.T) {
	// Given: two reports tied on MAP, one higher, one without MAP
	dir := writeReports(t, map[string]string{
		"A_BM25_t1_c1_trec.txt": report("0.3000"),
		"B_BM25_t1_c1_trec.txt": report("0.3000"),
		"C_BM25_t1_c1_trec.txt": report("0.4000"),
		"D_BM25_t1_c1_trec.txt": report(""),
		"E_BM25_t1_c1_trec.txt": report("garbage"),
		"ignored.csv":           "map all 0.99\n",
	})

	// When: aggregating
	rows, err := Aggregate(dir, Options{})

	// Then: highest first, ties and zero-valued rows keep lexical order
	require.NoError(t, err)
	assert.Equal(t, []string{
		"C_BM25_t1_c1", "A_BM25_t1_c1", "B_BM25_t1_c1", "D_BM25_t1_c1", "E_BM25_t1_c1",
	}, ids(rows))
	assert.Equal(t, "", rows[3].Value(MetricMAP), "missing metric stays empty")
	assert.Equal(t, "garbage", rows[4].Value(MetricMAP))
}

func TestAggregate_RecallAndRequestedMetrics(t *testing.T) {
	dir := writeReports(t, map[string]string{
		"EnglishAnalyzer_BM25_t1_c1_trec.txt": report("0.4000"),
	})

	rows, err := Aggregate(dir, Options{Metrics: []string{MetricMAP}})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{MetricMAP: "0.4000"}, rows[0].Values)
	assert.Equal(t, "0.7997", rows[0].Recall)
}

func TestAggregate_RecallFallback(t *testing.T) {
	dir := writeReports(t, map[string]string{
		"X_TFIDF_t1_c1_trec.txt": "map all 0.1\n",
	})

	rows, err := Aggregate(dir, Options{})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.0000", rows[0].Recall)
}

func TestAggregate_ExpectedAddsEmptyRows(t *testing.T) {
	// Given: five expected configurations and reports for four of them
	expected := []string{
		"StandardAnalyzer_BM25_t1_c1",
		"StandardAnalyzer_BM25_t2_c1",
		"EnglishAnalyzer_BM25_t1_c1",
		"EnglishAnalyzer_BM25_t2_c1",
		"SimpleAnalyzer_BM25_t1_c1",
	}
	files := map[string]string{}
	for i, id := range expected {
		if id == "EnglishAnalyzer_BM25_t1_c1" {
			continue
		}
		files[ReportName(id)] = report("0.3" + string(rune('0'+i)))
	}
	dir := writeReports(t, files)

	// When: aggregating with the expected list
	rows, err := Aggregate(dir, Options{Expected: expected})

	// Then: four complete rows and one empty row at the bottom
	require.NoError(t, err)
	require.Len(t, rows, 5)
	missing := rows[4]
	assert.True(t, missing.Missing)
	assert.Equal(t, "EnglishAnalyzer_BM25_t1_c1", missing.ID)
	assert.Equal(t, "EnglishAnalyzer", missing.Tokenizer)
	for _, r := range rows[:4] {
		assert.False(t, r.Missing)
		assert.NotEmpty(t, r.Value(MetricMAP))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, LayoutFull))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "EnglishAnalyzer,BM25,1,1,0,0,,,,,,,", lines[5])
}

func TestWriteCSV_Layouts(t *testing.T) {
	rows := []Row{{
		Identity: Identity{Tokenizer: "EnglishAnalyzer", Scoring: "BM25", Flags: BoostFlags{T2: true, C1: true}},
		Values: map[string]string{
			MetricMAP: "0.4012", MetricP10: "0.2813", MetricRPrec: "0.3900",
			MetricBpref: "0.3800", MetricRecipRank: "0.7500", MetricIPrec0: "0.8000",
		},
		Recall: "0.7997",
	}}

	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, rows, LayoutFull))
		assert.Equal(t,
			"Analyzer,Similarity,T1,C1,T2,C2,MAP,P@10,R-Prec,bpref,recip_rank,InterpolatedPrecision,Recall\n"+
				"EnglishAnalyzer,BM25,0,1,1,0,0.4012,0.2813,0.3900,0.3800,0.7500,0.8000,0.7997\n",
			buf.String())
	})

	t.Run("reduced", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, rows, LayoutReduced))
		assert.Equal(t,
			"Analyzer,Similarity,MAP,P@10,R-Prec,bpref,recip_rank,InterpolatedPrecision\n"+
				"EnglishAnalyzer,BM25,0.4012,0.2813,0.3900,0.3800,0.7500,0.8000\n",
			buf.String())
	})
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trec_eval_summary.csv")

	require.NoError(t, WriteCSVFile(path, nil, LayoutReduced))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Analyzer,Similarity,MAP,P@10,R-Prec,bpref,recip_rank,InterpolatedPrecision\n", string(data))
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("Reduced")
	require.NoError(t, err)
	assert.Equal(t, LayoutReduced, l)

	l, err = ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutFull, l)

	_, err = ParseLayout("wide")
	assert.Equal(t, cerrors.ErrCodeInvalidInput, cerrors.GetCode(err))
}

func TestReportMAP(t *testing.T) {
	dir := writeReports(t, map[string]string{"a_trec.txt": report("0.2500"), "b_trec.txt": report("")})

	v, err := ReportMAP(filepath.Join(dir, "a_trec.txt"))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-9)

	_, err = ReportMAP(filepath.Join(dir, "b_trec.txt"))
	assert.Error(t, err)
}

func TestWatch_ReaggregatesOnNewReport(t *testing.T) {
	// Given: a watched, empty report directory
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan []Row, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, Options{}, 50*time.Millisecond, func(rows []Row, err error) {
			if err == nil {
				results <- rows
			}
		})
	}()

	select {
	case rows := <-results:
		assert.Empty(t, rows)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial aggregation")
	}

	// When: a report appears
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A_BM25_t1_c1_trec.txt"), []byte(report("0.3")), 0o644))

	// Then: a new aggregation includes it
	deadline := time.After(5 * time.Second)
	for {
		select {
		case rows := <-results:
			if len(rows) == 1 {
				cancel()
				assert.NoError(t, <-done)
				return
			}
		case <-deadline:
			t.Fatal("report change not observed")
		}
	}
}
