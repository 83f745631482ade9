package aggregate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// Layout selects the summary columns.
type Layout int

const (
	// LayoutFull adds boost flag columns and derived recall.
	LayoutFull Layout = iota
	// LayoutReduced has identity and the six metrics only.
	LayoutReduced
)

// String returns the layout name used in configuration files.
func (l Layout) String() string {
	if l == LayoutReduced {
		return "reduced"
	}
	return "full"
}

// ParseLayout parses "full" or "reduced".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return LayoutFull, nil
	case "reduced":
		return LayoutReduced, nil
	}
	return LayoutFull, cerrors.ValidationError(fmt.Sprintf("unknown summary layout %q", s), nil).
		WithSuggestion("use 'full' or 'reduced'")
}

// metricColumns maps summary headers to trec_eval metric names.
var metricColumns = []struct {
	header string
	metric string
}{
	{"MAP", MetricMAP},
	{"P@10", MetricP10},
	{"R-Prec", MetricRPrec},
	{"bpref", MetricBpref},
	{"recip_rank", MetricRecipRank},
	{"InterpolatedPrecision", MetricIPrec0},
}

// Header returns the column names for a layout.
func Header(layout Layout) []string {
	cols := []string{"Analyzer", "Similarity"}
	if layout == LayoutFull {
		cols = append(cols, "T1", "C1", "T2", "C2")
	}
	for _, c := range metricColumns {
		cols = append(cols, c.header)
	}
	if layout == LayoutFull {
		cols = append(cols, "Recall")
	}
	return cols
}

// Fields returns a row's cells for a layout.
func (r Row) Fields(layout Layout) []string {
	cells := []string{r.Tokenizer, r.Scoring}
	if layout == LayoutFull {
		cells = append(cells, flag(r.Flags.T1), flag(r.Flags.C1), flag(r.Flags.T2), flag(r.Flags.C2))
	}
	for _, c := range metricColumns {
		cells = append(cells, r.Values[c.metric])
	}
	if layout == LayoutFull {
		cells = append(cells, r.Recall)
	}
	return cells
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteCSV writes a header and one comma-joined line per row. Cells are not
// quoted; labels and metric values never contain commas.
func WriteCSV(w io.Writer, rows []Row, layout Layout) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, strings.Join(Header(layout), ",")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(bw, strings.Join(r.Fields(layout), ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCSVFile writes the summary to path, creating parent directories.
func WriteCSVFile(path string, rows []Row, layout Layout) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cerrors.New(cerrors.ErrCodeDirCreate, "failed to create summary directory", err).
			WithDetail("path", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "failed to create summary file", err).
			WithDetail("path", path)
	}
	if err := WriteCSV(f, rows, layout); err != nil {
		_ = f.Close()
		return cerrors.IOError("failed to write summary", err).WithDetail("path", path)
	}
	return f.Close()
}
