// Package aggregate reads trec_eval reports and ranks configurations by MAP.
//
// A report is named <Tokenizer>_<Scoring>[_<flag>...]_trec.txt and holds
// lines of the form "<metric> all <value>". Rows keep a fixed column shape:
// a metric missing from a report is an empty string, never a dropped column.
package aggregate

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// Metric names as trec_eval prints them.
const (
	MetricMAP       = "map"
	MetricP10       = "P_10"
	MetricRPrec     = "Rprec"
	MetricBpref     = "bpref"
	MetricRecipRank = "recip_rank"
	MetricIPrec0    = "iprec_at_recall_0.00"
	MetricNumRel    = "num_rel"
	MetricNumRelRet = "num_rel_ret"
)

// ReportSuffix ends every report filename.
const ReportSuffix = "_trec.txt"

// DefaultMetrics are the metrics summarised per configuration, in column order.
var DefaultMetrics = []string{MetricMAP, MetricP10, MetricRPrec, MetricBpref, MetricRecipRank, MetricIPrec0}

var metricLine = regexp.MustCompile(`^(\S+)\s+all\s+(\S+)$`)

// BoostFlags records which boost tokens appear in a report name.
type BoostFlags struct {
	T1, C1, T2, C2 bool
}

// Identity is a configuration as recovered from a report filename.
type Identity struct {
	ID        string
	Tokenizer string
	Scoring   string
	Flags     BoostFlags
}

// Row is one configuration's metrics.
type Row struct {
	Identity
	Values map[string]string
	Recall string
	// Missing marks an expected configuration with no report.
	Missing bool
}

// Value returns a metric value, or "" when absent.
func (r Row) Value(metric string) string {
	return r.Values[metric]
}

// MAP returns the row's mean average precision, 0 when empty or unparsable.
func (r Row) MAP() float64 {
	return parseOrZero(r.Values[MetricMAP])
}

// Options control aggregation.
type Options struct {
	// Metrics to keep; DefaultMetrics when empty.
	Metrics []string
	// Expected configuration ids. Each one without a report yields an
	// empty-valued row.
	Expected []string
}

// ReportName returns the report filename for a configuration id.
func ReportName(id string) string {
	return id + ReportSuffix
}

// ParseIdentity splits a report filename into its configuration identity.
func ParseIdentity(filename string) Identity {
	id := filepath.Base(filename)
	if strings.HasSuffix(id, ReportSuffix) {
		id = strings.TrimSuffix(id, ReportSuffix)
	} else {
		id = strings.TrimSuffix(id, ".txt")
	}

	parts := strings.Split(id, "_")
	ident := Identity{ID: id, Tokenizer: parts[0], Scoring: "Unknown"}
	if len(parts) > 1 {
		ident.Scoring = parts[1]
	}
	for _, p := range parts[min(2, len(parts)):] {
		switch strings.ToLower(p) {
		case "t1":
			ident.Flags.T1 = true
		case "c1":
			ident.Flags.C1 = true
		case "t2":
			ident.Flags.T2 = true
		case "c2":
			ident.Flags.C2 = true
		}
	}
	return ident
}

// ParseReport extracts "<metric> all <value>" lines. When metrics is empty
// every metric is kept. A repeated metric keeps its last value.
func ParseReport(r io.Reader, metrics []string) (map[string]string, error) {
	keep := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		keep[m] = true
	}

	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := metricLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		if len(keep) > 0 && !keep[m[1]] {
			continue
		}
		values[m[1]] = m[2]
	}
	return values, sc.Err()
}

// ReadReport parses the report at path.
func ReadReport(path string, metrics []string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReport(f, metrics)
}

// ReportMAP returns the MAP recorded in the report at path.
func ReportMAP(path string) (float64, error) {
	values, err := ReadReport(path, []string{MetricMAP})
	if err != nil {
		return 0, err
	}
	v, ok := values[MetricMAP]
	if !ok {
		return 0, fmt.Errorf("no %s line in %s", MetricMAP, path)
	}
	return strconv.ParseFloat(v, 64)
}

// Recall derives num_rel_ret / num_rel. Missing or unparsable inputs and a
// zero num_rel yield 0.
func Recall(values map[string]string) float64 {
	relRet, err1 := strconv.ParseFloat(values[MetricNumRelRet], 64)
	rel, err2 := strconv.ParseFloat(values[MetricNumRel], 64)
	if err1 != nil || err2 != nil || rel <= 0 {
		return 0
	}
	return relRet / rel
}

// Aggregate reads every *.txt report in dir, in lexical filename order, and
// returns rows sorted by descending MAP. Rows with equal MAP keep that order.
// An unreadable directory is an error; an unreadable report is logged and
// skipped.
func Aggregate(dir string, opts Options) ([]Row, error) {
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = DefaultMetrics
	}
	parseSet := append(append([]string{}, metrics...), MetricNumRel, MetricNumRelRet)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cerrors.AggregationError("cannot read report directory", err).
			WithDetail("dir", dir).
			WithSuggestion("run 'cranbench sweep' first or pass --reports")
	}

	rows := make([]Row, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") || strings.HasPrefix(name, ".") {
			continue
		}

		all, err := ReadReport(filepath.Join(dir, name), parseSet)
		if err != nil {
			slog.Warn("report_unreadable",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}

		ident := ParseIdentity(name)
		values := make(map[string]string, len(metrics))
		for _, m := range metrics {
			if v, ok := all[m]; ok {
				values[m] = v
			}
		}

		rows = append(rows, Row{
			Identity: ident,
			Values:   values,
			Recall:   strconv.FormatFloat(Recall(all), 'f', 4, 64),
		})
		seen[ident.ID] = true
	}

	for _, id := range opts.Expected {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, Row{
			Identity: ParseIdentity(ReportName(id)),
			Values:   map[string]string{},
			Missing:  true,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].MAP() > rows[j].MAP()
	})

	slog.Debug("reports_aggregated",
		slog.String("dir", dir),
		slog.Int("rows", len(rows)))

	return rows, nil
}

func parseOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
