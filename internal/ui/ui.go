// Package ui renders sweep progress in the terminal.
//
// Two renderers share one interface: a bubbletea TUI for interactive
// terminals and a line-oriented plain renderer for pipes, CI and --no-tui.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a step of the per-configuration pipeline.
type Stage int

const (
	// StageParsing reads the corpus, queries and judgments.
	StageParsing Stage = iota
	// StageBuilding builds a configuration's index.
	StageBuilding
	// StageSearching runs the query set against an index.
	StageSearching
	// StageWriting writes the TREC run file.
	StageWriting
	// StageEvaluating runs trec_eval over a run file.
	StageEvaluating
	// StageComplete means every configuration has finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageParsing:
		return "Parsing"
	case StageBuilding:
		return "Building"
	case StageSearching:
		return "Searching"
	case StageWriting:
		return "Writing"
	case StageEvaluating:
		return "Evaluating"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain output.
func (s Stage) Icon() string {
	switch s {
	case StageParsing:
		return "PARSE"
	case StageBuilding:
		return "BUILD"
	case StageSearching:
		return "SEARCH"
	case StageWriting:
		return "WRITE"
	case StageEvaluating:
		return "EVAL"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent reports sweep progress. Current and Total count finished
// configurations; Config names the configuration the event is about.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Config  string
	Message string
	// MAP is set when HasMAP is true: the mean average precision of a
	// configuration that just finished evaluating.
	MAP    float64
	HasMAP bool
}

// ErrorEvent represents a configuration failure or warning.
type ErrorEvent struct {
	Config string
	Err    error
	IsWarn bool
}

// StageTimings sums the time spent in each stage across configurations.
type StageTimings struct {
	Parse    time.Duration
	Build    time.Duration
	Search   time.Duration
	Write    time.Duration
	Evaluate time.Duration
}

// CompletionStats summarises a finished sweep.
type CompletionStats struct {
	Configurations int
	Succeeded      int
	// Unevaluated counts configurations whose run was written but whose
	// evaluation failed.
	Unevaluated int
	Failed      int
	Duration    time.Duration
	Errors      int
	Warnings    int
	BestConfig  string
	BestMAP     float64
	Stages      StageTimings
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	Workspace    string // shown in the TUI header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithSpinnerStyle sets the spinner style.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) {
		c.SpinnerStyle = style
	}
}

// WithWorkspace sets the directory shown in the TUI header.
func WithWorkspace(dir string) ConfigOption {
	return func(c *Config) {
		c.Workspace = dir
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:       output,
		SpinnerStyle: "dots",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}

	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}

	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}

	return tui
}

// NopRenderer discards all events.
type NopRenderer struct{}

func (NopRenderer) Start(context.Context) error  { return nil }
func (NopRenderer) UpdateProgress(ProgressEvent) {}
func (NopRenderer) AddError(ErrorEvent)          {}
func (NopRenderer) Complete(CompletionStats)     {}
func (NopRenderer) Stop() error                  { return nil }

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
