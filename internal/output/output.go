// Package output provides consistent CLI output formatting: status lines,
// the ranked summary table, search hits and ledger listings.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	"github.com/Aman-CERP/cranbench/internal/engine"
	"github.com/Aman-CERP/cranbench/internal/ledger"
	"github.com/Aman-CERP/cranbench/internal/ui"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer without colors.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: ui.NoColorStyles()}
}

// NewStyled creates a Writer that colors tables with styles.
func NewStyled(out io.Writer, styles ui.Styles) *Writer {
	return &Writer{out: out, styles: styles}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// mapBarWidth is the width of the MAP bar in the summary table.
const mapBarWidth = 20

// SummaryTable prints ranked rows with a MAP bar. Rows are printed in the
// given order; limit <= 0 prints all of them.
func (w *Writer) SummaryTable(rows []aggregate.Row, limit int) {
	if len(rows) == 0 {
		w.Status("", "No reports found.")
		return
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	idWidth := len("Configuration")
	for _, r := range rows {
		idWidth = max(idWidth, len(r.ID))
	}

	header := fmt.Sprintf("%4s  %-*s  %-6s  %-6s  %-6s  %-6s  %-6s  %s",
		"#", idWidth, "Configuration", "MAP", "P@10", "R-Prec", "bpref", "Recall", "")
	_, _ = fmt.Fprintln(w.out, w.styles.TableHeader.Render(strings.TrimRight(header, " ")))

	for i, r := range rows {
		if r.Missing {
			line := fmt.Sprintf("%4d  %-*s  not evaluated", i+1, idWidth, r.ID)
			_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render(line))
			continue
		}
		line := fmt.Sprintf("%4d  %-*s  %-6s  %-6s  %-6s  %-6s  %-6s  %s",
			i+1, idWidth, r.ID,
			cell(r.Value(aggregate.MetricMAP)),
			cell(r.Value(aggregate.MetricP10)),
			cell(r.Value(aggregate.MetricRPrec)),
			cell(r.Value(aggregate.MetricBpref)),
			cell(r.Recall),
			renderBar(r.MAP(), mapBarWidth))
		style := w.styles.TableCell
		if i == 0 {
			style = w.styles.BestRow
		}
		_, _ = fmt.Fprintln(w.out, style.Render(line))
	}
}

func cell(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// renderBar creates a text bar for a value in [0,1].
func renderBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Hits prints ranked search results. Titles are cut to titleWidth runes.
func (w *Writer) Hits(hits []engine.Hit, total uint64, titleWidth int) {
	if len(hits) == 0 {
		w.Status("", "No matching documents.")
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.TableHeader.Render(
		fmt.Sprintf("%4s  %-6s  %-10s  %s", "#", "Doc", "Score", "Title")))
	for i, h := range hits {
		line := fmt.Sprintf("%4d  %-6s  %-10s  %s", i+1, h.ID, strconv.FormatFloat(h.Score, 'f', 4, 64), cut(h.Title, titleWidth))
		_, _ = fmt.Fprintln(w.out, w.styles.TableCell.Render(line))
		if h.Author != "" {
			_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(fmt.Sprintf("%24s%s", "", cut(h.Author, titleWidth))))
		}
	}
	w.Statusf("", "%d shown of %d matching", len(hits), total)
}

// cut shortens s to n runes, marking the cut with "...".
func cut(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// Runs prints ledger runs, newest first.
func (w *Writer) Runs(runs []ledger.Run) {
	if len(runs) == 0 {
		w.Status("", "No sweeps recorded.")
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.TableHeader.Render(
		fmt.Sprintf("%-36s  %-19s  %-8s  %s", "Run", "Started", "Status", "Evaluated")))
	for _, r := range runs {
		line := fmt.Sprintf("%-36s  %-19s  %-8s  %d/%d",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Evaluated, r.Configurations)
		style := w.styles.TableCell
		switch r.Status {
		case ledger.StatusFailed:
			style = w.styles.Error
		case ledger.StatusPartial:
			style = w.styles.Warning
		}
		_, _ = fmt.Fprintln(w.out, style.Render(line))
	}
}
