// Package ledger records sweeps and their per-configuration outcomes in a
// SQLite database, so a later summary knows which configurations a sweep
// attempted and how each one ended.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver, no CGO

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// Run status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
)

// Outcome status values.
const (
	OutcomeEvaluated   = "evaluated"
	OutcomeUnevaluated = "unevaluated"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
)

// Run is one sweep.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time // zero while running
	Status         string
	CorpusPath     string
	Configurations int
	Workers        int
	Evaluated      int
	Failed         int
}

// RunInfo describes a sweep about to start.
type RunInfo struct {
	CorpusPath     string
	Configurations int
	Workers        int
}

// Outcome is how one configuration ended within a run.
type Outcome struct {
	RunID         string
	ConfigID      string
	Tokenizer     string
	Scoring       string
	TitleBoost    float64
	BodyBoost     float64
	Status        string
	Stage         string
	Error         string
	Lines         int
	FailedQueries int
	MAP           float64
	HasMAP        bool
	Duration      time.Duration
	RecordedAt    time.Time
}

// Ledger is a SQLite-backed run ledger. Safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	status TEXT NOT NULL,
	corpus_path TEXT NOT NULL DEFAULT '',
	configurations INTEGER NOT NULL DEFAULT 0,
	workers INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL REFERENCES runs(id),
	config_id TEXT NOT NULL,
	tokenizer TEXT NOT NULL,
	scoring TEXT NOT NULL,
	title_boost REAL NOT NULL,
	body_boost REAL NOT NULL,
	status TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	lines INTEGER NOT NULL DEFAULT 0,
	failed_queries INTEGER NOT NULL DEFAULT 0,
	map REAL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (run_id, config_id)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDirCreate, "failed to create ledger directory", err).
			WithDetail("path", filepath.Dir(path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cerrors.IOError("failed to open ledger", err).WithDetail("path", path)
	}

	// Single writer; concurrent workers serialize through the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, cerrors.IOError("failed to configure ledger", err).WithDetail("pragma", p)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, cerrors.IOError("failed to create ledger schema", err).WithDetail("path", path)
	}

	return &Ledger{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun records a new running sweep and returns its id.
func (l *Ledger) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, corpus_path, configurations, workers)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, formatTime(l.now()), StatusRunning, info.CorpusPath, info.Configurations, info.Workers)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordOutcome stores a configuration's outcome, replacing any earlier
// outcome for the same configuration in the run.
func (l *Ledger) RecordOutcome(ctx context.Context, o Outcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = l.now()
	}
	var mapValue sql.NullFloat64
	if o.HasMAP {
		mapValue = sql.NullFloat64{Float64: o.MAP, Valid: true}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, config_id, tokenizer, scoring, title_boost, body_boost,
			status, stage, error, lines, failed_queries, map, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, config_id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			error = excluded.error,
			lines = excluded.lines,
			failed_queries = excluded.failed_queries,
			map = excluded.map,
			duration_ms = excluded.duration_ms,
			recorded_at = excluded.recorded_at
	`, o.RunID, o.ConfigID, o.Tokenizer, o.Scoring, o.TitleBoost, o.BodyBoost,
		o.Status, o.Stage, o.Error, o.Lines, o.FailedQueries, mapValue,
		o.Duration.Milliseconds(), formatTime(o.RecordedAt))
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", o.ConfigID, err)
	}
	return nil
}

// FinishRun closes a run. Its status follows from the recorded outcomes:
// complete when every configuration was evaluated, partial when some were,
// failed otherwise.
func (l *Ledger) FinishRun(ctx context.Context, runID string) (Run, error) {
	run, err := l.Run(ctx, runID)
	if err != nil {
		return Run{}, err
	}

	switch {
	case run.Configurations > 0 && run.Evaluated == run.Configurations:
		run.Status = StatusComplete
	case run.Evaluated > 0:
		run.Status = StatusPartial
	default:
		run.Status = StatusFailed
	}
	run.FinishedAt = l.now()

	_, err = l.db.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		run.Status, formatTime(run.FinishedAt), runID)
	if err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}
	return run, nil
}

const runColumns = `
	r.id, r.started_at, COALESCE(r.finished_at, ''), r.status, r.corpus_path, r.configurations, r.workers,
	(SELECT COUNT(*) FROM outcomes o WHERE o.run_id = r.id AND o.status = 'evaluated'),
	(SELECT COUNT(*) FROM outcomes o WHERE o.run_id = r.id AND o.status = 'failed')`

// Run returns a run by id.
func (l *Ledger) Run(ctx context.Context, runID string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, cerrors.ValidationError(fmt.Sprintf("no run %q in ledger", runID), nil)
	}
	return run, err
}

// LatestRun returns the most recently started run. ok is false when the
// ledger is empty.
func (l *Ledger) LatestRun(ctx context.Context) (run Run, ok bool, err error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC LIMIT 1`)
	run, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

// Runs lists runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Outcomes lists a run's outcomes ordered by configuration id.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, config_id, tokenizer, scoring, title_boost, body_boost, status, stage, error,
			lines, failed_queries, map, duration_ms, recorded_at
		FROM outcomes WHERE run_id = ? ORDER BY config_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o          Outcome
			mapValue   sql.NullFloat64
			durationMS int64
			recorded   string
		)
		if err := rows.Scan(&o.RunID, &o.ConfigID, &o.Tokenizer, &o.Scoring, &o.TitleBoost, &o.BodyBoost,
			&o.Status, &o.Stage, &o.Error, &o.Lines, &o.FailedQueries, &mapValue, &durationMS, &recorded); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.MAP, o.HasMAP = mapValue.Float64, mapValue.Valid
		o.Duration = time.Duration(durationMS) * time.Millisecond
		o.RecordedAt = parseTime(recorded)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ConfigIDs returns the configuration ids recorded for a run.
func (l *Ledger) ConfigIDs(ctx context.Context, runID string) ([]string, error) {
	outcomes, err := l.Outcomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(outcomes))
	for i, o := range outcomes {
		ids[i] = o.ConfigID
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	if err := s.Scan(&r.ID, &started, &finished, &r.Status, &r.CorpusPath, &r.Configurations, &r.Workers,
		&r.Evaluated, &r.Failed); err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
