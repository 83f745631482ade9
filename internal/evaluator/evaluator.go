// Package evaluator runs trec_eval against a run file and captures its
// report.
//
// The tool is invoked as "<tool> <qrels> <run>". Its stdout is the report;
// stderr is kept only for error messages. A report is written to disk with a
// temp file and rename, so a report path holds either a complete report or
// nothing.
package evaluator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// DefaultTool is the evaluator binary looked up on PATH.
const DefaultTool = "trec_eval"

// stderrLimit caps how much stderr is carried into an error.
const stderrLimit = 512

// Evaluator invokes an external evaluation tool.
type Evaluator struct {
	tool    string
	args    []string
	timeout time.Duration
	retry   cerrors.RetryConfig

	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
	lookPath    func(file string) (string, error)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTool sets the tool name or path.
func WithTool(tool string) Option {
	return func(e *Evaluator) {
		if tool != "" {
			e.tool = tool
		}
	}
}

// WithArgs sets extra arguments placed before the qrels and run paths.
func WithArgs(args ...string) Option {
	return func(e *Evaluator) { e.args = args }
}

// WithTimeout bounds each invocation. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithRetry retries invocations that time out.
func WithRetry(cfg cerrors.RetryConfig) Option {
	return func(e *Evaluator) { e.retry = cfg }
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		tool:        DefaultTool,
		retry:       cerrors.DefaultRetryConfig(),
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tool returns the configured tool name.
func (e *Evaluator) Tool() string { return e.tool }

// Locate resolves the tool on PATH.
func (e *Evaluator) Locate() (string, error) {
	path, err := e.lookPath(e.tool)
	if err != nil {
		return "", cerrors.SubprocessError(fmt.Sprintf("%s not found", e.tool), err).
			WithSuggestion("install trec_eval (https://github.com/usnistgov/trec_eval) or set evaluator.tool in cranbench.yaml")
	}
	return path, nil
}

// Evaluate runs the tool and returns its stdout.
func (e *Evaluator) Evaluate(ctx context.Context, qrelsPath, runPath string) ([]byte, error) {
	return cerrors.RetryWithResult(ctx, e.retry, func() ([]byte, error) {
		return e.run(ctx, qrelsPath, runPath)
	})
}

// EvaluateToFile runs the tool and stores its stdout at reportPath. On any
// failure reportPath is removed, so a stale report never outlives a failed
// evaluation.
func (e *Evaluator) EvaluateToFile(ctx context.Context, qrelsPath, runPath, reportPath string) error {
	out, err := e.Evaluate(ctx, qrelsPath, runPath)
	if err != nil {
		if rmErr := os.Remove(reportPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("stale_report_not_removed",
				slog.String("path", reportPath),
				slog.String("error", rmErr.Error()))
		}
		return err
	}
	return writeAtomic(reportPath, out)
}

func (e *Evaluator) run(ctx context.Context, qrelsPath, runPath string) ([]byte, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.args...), qrelsPath, runPath)
	cmd := e.execCommand(ctx, e.tool, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, cerrors.New(cerrors.ErrCodeSubprocessTimeout,
				fmt.Sprintf("%s timed out after %s", e.tool, e.timeout), err).
				WithDetail("run", runPath)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		msg := fmt.Sprintf("%s failed", e.tool)
		if exitErr, ok := err.(*exec.ExitError); ok {
			msg = fmt.Sprintf("%s exited with status %d", e.tool, exitErr.ExitCode())
		}
		be := cerrors.SubprocessError(msg, err).WithDetail("run", runPath)
		if s := strings.TrimSpace(stderr.String()); s != "" {
			be.WithDetail("stderr", truncate(s, stderrLimit))
		}
		return nil, be
	}

	slog.Debug("evaluator_finished",
		slog.String("tool", e.tool),
		slog.String("run", runPath),
		slog.Duration("elapsed", elapsed),
		slog.Int("bytes", stdout.Len()))

	return stdout.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cerrors.New(cerrors.ErrCodeDirCreate, "failed to create report directory", err).WithDetail("path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return cerrors.New(cerrors.ErrCodeFilePermission, "failed to create report file", err).WithDetail("path", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cerrors.New(cerrors.ErrCodeFilePermission, "failed to write report", err).WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return cerrors.New(cerrors.ErrCodeFilePermission, "failed to write report", err).WithDetail("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return cerrors.New(cerrors.ErrCodeFilePermission, "failed to store report", err).WithDetail("path", path)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
