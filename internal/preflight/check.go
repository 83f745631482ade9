package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan is what a sweep is about to touch.
type Plan struct {
	Corpus  string
	Queries string
	Qrels   string

	// IndexRoot is probed for free space as well as write access.
	IndexRoot    string
	ArtifactDirs []string
	Workers      int

	// Evaluator is skipped when nil.
	Evaluator Locator
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context, plan Plan) []CheckResult {
	var results []CheckResult

	results = append(results, c.CheckCorpus(plan.Corpus))
	results = append(results, c.CheckJudgments(plan.Queries, plan.Qrels))

	if plan.Evaluator != nil {
		results = append(results, c.CheckEvaluator(plan.Evaluator))
	}

	dirs := plan.ArtifactDirs
	if plan.IndexRoot != "" {
		dirs = append([]string{plan.IndexRoot}, dirs...)
		results = append(results, c.CheckDiskSpace(plan.IndexRoot))
	}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		results = append(results, c.CheckWritePermissions(dir))
	}

	results = append(results, c.CheckFileDescriptors(plan.Workers))

	return results
}

// HasCriticalFailures reports whether a required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	errs, _ := Issues(results)
	return len(errs) > 0
}

// Issues splits the results that need attention into blocking errors and
// warnings, each formatted as "name: message". An optional check that fails
// counts as a warning.
func Issues(results []CheckResult) (errs, warnings []string) {
	for _, r := range results {
		line := r.Name + ": " + r.Message
		switch {
		case r.IsCritical():
			errs = append(errs, line)
		case r.Status != StatusPass:
			warnings = append(warnings, line)
		}
	}
	return errs, warnings
}

// SummaryStatus is "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	errs, warnings := Issues(results)
	switch {
	case len(errs) > 0:
		return "failed"
	case len(warnings) > 0:
		return "ready_with_warnings"
	default:
		return "ready"
	}
}

const reportTitle = "cranbench System Check"

// PrintResults writes one line per check followed by the overall status and
// the issues found. Details are shown only in verbose mode.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprintf(w, "%s\n%s\n\n", reportTitle, strings.Repeat("=", len(reportTitle)))

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	errs, warnings := Issues(results)
	printIssues(w, "error", errs)
	printIssues(w, "warning", warnings)
}

func printIssues(w io.Writer, kind string, lines []string) {
	if len(lines) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s(s):\n", len(lines), kind)
	for _, l := range lines {
		_, _ = fmt.Fprintf(w, "  - %s\n", l)
	}
}

// CheckWritePermissions checks that files can be created in dir. A missing
// dir passes when its nearest existing ancestor is writable, since the sweep
// creates it.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write:" + dir,
		Required: true,
	}

	probe := existingAncestor(dir)
	info, err := os.Stat(probe)
	if err != nil || !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", probe)
		return result
	}

	testFile := filepath.Join(probe, ".cranbench-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	if abs, _ := filepath.Abs(dir); probe != abs {
		result.Message = fmt.Sprintf("will be created under %s", probe)
	} else {
		result.Message = "OK"
	}
	return result
}
