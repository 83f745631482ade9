package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs one line per event (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	stage   Stage
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// [STAGE] current/total - config: message
	msg := event.Message
	switch {
	case event.Config != "" && msg != "":
		msg = event.Config + ": " + msg
	case event.Config != "":
		msg = event.Config
	}
	if event.HasMAP {
		msg = fmt.Sprintf("%s (map %.4f)", msg, event.MAP)
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.Config != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Config, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d/%d configurations evaluated in %s",
		stats.Succeeded, stats.Configurations, stats.Duration.Round(100*time.Millisecond))

	if stats.Failed > 0 || stats.Unevaluated > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed, %d not evaluated)", stats.Failed, stats.Unevaluated)
	}

	_, _ = fmt.Fprintln(r.out)

	if stats.BestConfig != "" {
		_, _ = fmt.Fprintf(r.out, "Best: %s (map %.4f)\n", stats.BestConfig, stats.BestMAP)
	}

	st := stats.Stages
	if st.Build > 0 || st.Evaluate > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Parse:    %s\n", st.Parse.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Build:    %s\n", st.Build.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Search:   %s\n", st.Search.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Write:    %s\n", st.Write.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Evaluate: %s\n", st.Evaluate.Round(time.Millisecond))
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
