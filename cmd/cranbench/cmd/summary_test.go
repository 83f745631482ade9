package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReports(t *testing.T, dir string, reports map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range reports {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func sampleReports(t *testing.T, dir string) {
	writeReports(t, dir, map[string]string{
		"EnglishAnalyzer_BM25_t1_c1_trec.txt": "map all 0.3000\nP_10 all 0.2000\nnum_rel all 10\nnum_rel_ret all 5\n",
		"SimpleAnalyzer_TFIDF_t2_c1_trec.txt": "map all 0.4000\nP_10 all 0.2500\nnum_rel all 10\nnum_rel_ret all 8\n",
	})
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestSummaryCmd_WritesRankedCSV(t *testing.T) {
	// Given: two reports in the configured reports directory
	dir := workspace(t, "")
	sampleReports(t, filepath.Join(dir, "trec_reports"))

	// When: summarizing
	out, err := execute(t, newSummaryCmd())

	// Then: rows are ranked by MAP with derived recall
	require.NoError(t, err)
	assert.Contains(t, out, "2 configuration(s) written to trec_eval_summary.csv")

	lines := readLines(t, filepath.Join(dir, "trec_eval_summary.csv"))
	require.Len(t, lines, 3)
	assert.Equal(t, "Analyzer,Similarity,T1,C1,T2,C2,MAP,P@10,R-Prec,bpref,recip_rank,InterpolatedPrecision,Recall", lines[0])
	assert.Equal(t, "SimpleAnalyzer,TFIDF,0,1,1,0,0.4000,0.2500,,,,,0.8000", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "EnglishAnalyzer,BM25,1,1,0,0,0.3000"))
}

func TestSummaryCmd_ReducedLayoutAndOut(t *testing.T) {
	dir := workspace(t, "")
	other := filepath.Join(dir, "old_reports")
	sampleReports(t, other)
	csvPath := filepath.Join(dir, "out", "old.csv")

	_, err := execute(t, newSummaryCmd(), "--reports", other, "--out", csvPath, "--reduced")

	require.NoError(t, err)
	lines := readLines(t, csvPath)
	require.Len(t, lines, 3)
	assert.Equal(t, "Analyzer,Similarity,MAP,P@10,R-Prec,bpref,recip_rank,InterpolatedPrecision", lines[0])
	assert.Equal(t, "SimpleAnalyzer,TFIDF,0.4000,0.2500,,,,", lines[1])
}

func TestSummaryCmd_JSON(t *testing.T) {
	dir := workspace(t, "")
	sampleReports(t, filepath.Join(dir, "trec_reports"))

	out, err := execute(t, newSummaryCmd(), "--json")

	require.NoError(t, err)
	var rows []summaryRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "SimpleAnalyzer_TFIDF_t2_c1", rows[0].Config)
	assert.Equal(t, "0.4000", rows[0].Metrics["map"])
	assert.Equal(t, "0.8000", rows[0].Recall)
	assert.False(t, rows[0].Missing)
}

func TestSummaryCmd_MissingReportsDir(t *testing.T) {
	workspace(t, "")

	_, err := execute(t, newSummaryCmd())

	assert.Error(t, err)
}

func TestSummaryCmd_RunsWithEmptyLedger(t *testing.T) {
	workspace(t, "")

	out, err := execute(t, newSummaryCmd(), "--runs", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "No sweeps recorded.")
}
