package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CorpusStatus describes the collection inputs and the most recent sweep.
type CorpusStatus struct {
	CorpusPath string `json:"corpus_path"`
	CorpusSize int64  `json:"corpus_size"`

	Documents    int `json:"documents"`
	EmptyTitles  int `json:"empty_titles"`
	EmptyBodies  int `json:"empty_bodies"`
	DuplicateIDs int `json:"duplicate_ids"`
	AvgBodyWords int `json:"avg_body_words"`

	Queries       int `json:"queries"`
	JudgedQueries int `json:"judged_queries"`
	Judgments     int `json:"judgments"`
	OrphanedQrels int `json:"orphaned_qrels"`

	LastSweep       time.Time `json:"last_sweep,omitempty"`
	LastSweepStatus string    `json:"last_sweep_status,omitempty"` // "complete", "partial", "failed", "running"
}

// StatusRenderer displays corpus status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays corpus status as text.
func (r *StatusRenderer) Render(info CorpusStatus) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Collection: "+info.CorpusPath))

	_, _ = fmt.Fprintln(r.out, "  Corpus:")
	_, _ = fmt.Fprintf(r.out, "    Documents:     %d (%s)\n", info.Documents, FormatBytes(info.CorpusSize))
	_, _ = fmt.Fprintf(r.out, "    Empty titles:  %d\n", info.EmptyTitles)
	_, _ = fmt.Fprintf(r.out, "    Empty bodies:  %d\n", info.EmptyBodies)
	if info.DuplicateIDs > 0 {
		_, _ = fmt.Fprintf(r.out, "    Duplicate ids: %s\n", r.styles.Warning.Render(fmt.Sprintf("%d", info.DuplicateIDs)))
	}
	_, _ = fmt.Fprintf(r.out, "    Avg body:      %d words\n", info.AvgBodyWords)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Queries:")
	_, _ = fmt.Fprintf(r.out, "    Total:         %d\n", info.Queries)
	_, _ = fmt.Fprintf(r.out, "    Judged:        %d\n", info.JudgedQueries)
	_, _ = fmt.Fprintf(r.out, "    Judgments:     %d\n", info.Judgments)
	if info.OrphanedQrels > 0 {
		_, _ = fmt.Fprintf(r.out, "    Orphaned:      %s\n", r.styles.Warning.Render(fmt.Sprintf("%d", info.OrphanedQrels)))
	}
	_, _ = fmt.Fprintln(r.out)

	if !info.LastSweep.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last sweep: %s (%s)\n", formatTime(info.LastSweep), r.renderStatus(info.LastSweepStatus))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info CorpusStatus) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "complete":
		return r.styles.Success.Render(status)
	case "partial", "running":
		return r.styles.Warning.Render(status)
	case "failed":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
