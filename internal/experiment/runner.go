package experiment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/engine"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/ledger"
	"github.com/Aman-CERP/cranbench/internal/metrics"
	"github.com/Aman-CERP/cranbench/internal/trec"
	"github.com/Aman-CERP/cranbench/internal/ui"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// State is where the runner, or a single configuration, is in the pipeline.
type State int32

const (
	Idle State = iota
	ParsingCorpus
	Building
	Searching
	Writing
	Evaluating
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ParsingCorpus:
		return "ParsingCorpus"
	case Building:
		return "Building"
	case Searching:
		return "Searching"
	case Writing:
		return "Writing"
	case Evaluating:
		return "Evaluating"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

func (s State) uiStage() ui.Stage {
	switch s {
	case ParsingCorpus:
		return ui.StageParsing
	case Building:
		return ui.StageBuilding
	case Searching:
		return ui.StageSearching
	case Writing:
		return ui.StageWriting
	case Evaluating:
		return ui.StageEvaluating
	default:
		return ui.StageComplete
	}
}

// Outcome status values. They match the ledger's outcome values.
const (
	StatusEvaluated   = ledger.OutcomeEvaluated
	StatusUnevaluated = ledger.OutcomeUnevaluated
	StatusFailed      = ledger.OutcomeFailed
	StatusSkipped     = "skipped"
)

// lockRetryDelay is how often a busy index lock is retried.
const lockRetryDelay = 50 * time.Millisecond

// Evaluator scores a run file against the judgments and stores the report.
// On failure no report may be left at reportPath.
type Evaluator interface {
	EvaluateToFile(ctx context.Context, qrelsPath, runPath, reportPath string) error
}

// Ledger records the sweep. *ledger.Ledger implements it.
type Ledger interface {
	BeginRun(ctx context.Context, info ledger.RunInfo) (string, error)
	RecordOutcome(ctx context.Context, o ledger.Outcome) error
	FinishRun(ctx context.Context, runID string) (ledger.Run, error)
}

// RunnerConfig configures one sweep.
type RunnerConfig struct {
	CorpusPath  string
	QueriesPath string
	QrelsPath   string

	Layout Layout

	Tokenizers []variant.Tokenizer
	Scorings   []variant.Scoring
	// Boosts defaults to DefaultBoosts.
	Boosts []engine.Boosts

	TopK   int
	RunTag string

	// Workers is the number of configurations run at once. Defaults to 1.
	Workers int

	// MetricsTextfile, when set, receives the sweep metrics at the end.
	MetricsTextfile string
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Engine builds the per-configuration indexes (required).
	Engine engine.IndexEngine

	// Evaluator runs trec_eval (required).
	Evaluator Evaluator

	// Ledger is optional.
	Ledger Ledger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Outcome is how one configuration ended.
type Outcome struct {
	Config Configuration
	ID     string
	Status string
	// Stage is the last stage the configuration entered.
	Stage State
	Err   error

	Queries       int
	EmptyQueries  int
	FailedQueries int
	Lines         int

	MAP    float64
	HasMAP bool

	Duration time.Duration

	IndexPath   string
	ResultsPath string
	ReportPath  string
}

// Report is the result of a sweep.
type Report struct {
	RunID    string
	Outcomes []Outcome
	Duration time.Duration
	Stages   ui.StageTimings
}

// Count returns the number of outcomes with status.
func (r *Report) Count(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Best returns the evaluated outcome with the highest MAP.
func (r *Report) Best() (Outcome, bool) {
	var best Outcome
	found := false
	for _, o := range r.Outcomes {
		if o.HasMAP && (!found || o.MAP > best.MAP) {
			best, found = o, true
		}
	}
	return best, found
}

// Runner executes sweeps with progress reporting.
type Runner struct {
	renderer  ui.Renderer
	engine    engine.IndexEngine
	evaluator Evaluator
	ledger    Ledger
	metrics   *metrics.Metrics

	state atomic.Int32
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("index engine is required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	return &Runner{
		renderer:  deps.Renderer,
		engine:    deps.Engine,
		evaluator: deps.Evaluator,
		ledger:    deps.Ledger,
		metrics:   deps.Metrics,
	}, nil
}

// State returns the stage the runner most recently entered.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// stageTimer accumulates per-stage time across concurrent configurations.
type stageTimer struct {
	mu sync.Mutex
	t  ui.StageTimings
}

func (s *stageTimer) add(stage State, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch stage {
	case ParsingCorpus:
		s.t.Parse += d
	case Building:
		s.t.Build += d
	case Searching:
		s.t.Search += d
	case Writing:
		s.t.Write += d
	case Evaluating:
		s.t.Evaluate += d
	}
}

func (s *stageTimer) snapshot() ui.StageTimings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// sweep is the shared state of one Run call.
type sweep struct {
	cfg     RunnerConfig
	runID   string
	records []corpus.Record
	queries map[variant.Tokenizer]tokenizerQueries
	timer   stageTimer
	total   int

	mu        sync.Mutex
	completed int
}

type tokenizerQueries struct {
	queries []corpus.Query
	err     error
}

// Run executes the sweep. Failures of a single configuration are recorded in
// its Outcome and never abort the sweep; only fatal errors (unreadable
// inputs, artifact directories that cannot be created) or cancellation are
// returned, together with the partial report.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*Report, error) {
	start := time.Now()
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if len(cfg.Boosts) == 0 {
		cfg.Boosts = DefaultBoosts
	}

	configs := Enumerate(cfg.Tokenizers, cfg.Scorings, cfg.Boosts)
	if len(configs) == 0 {
		return nil, cerrors.ValidationError("sweep has no configurations", nil).
			WithSuggestion("configure at least one tokenizer and one scoring variant")
	}

	s := &sweep{cfg: cfg, total: len(configs)}
	report := &Report{}

	if err := r.prepare(ctx, s, configs); err != nil {
		r.setState(Done)
		return report, err
	}
	report.Outcomes = make([]Outcome, len(configs))

	if r.ledger != nil {
		runID, err := r.ledger.BeginRun(ctx, ledger.RunInfo{
			CorpusPath:     cfg.CorpusPath,
			Configurations: len(configs),
			Workers:        cfg.Workers,
		})
		if err != nil {
			slog.Warn("ledger_begin_failed", slog.String("error", err.Error()))
		} else {
			s.runID = runID
			report.RunID = runID
		}
	}

	slog.Info("sweep_started",
		slog.String("run_id", s.runID),
		slog.Int("configurations", len(configs)),
		slog.Int("workers", cfg.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, c := range configs {
		g.Go(func() error {
			if gctx.Err() != nil {
				report.Outcomes[i] = r.skipped(s, c, gctx.Err())
				r.recordOutcome(ctx, s, report.Outcomes[i])
				return nil
			}
			out, err := r.runConfiguration(gctx, s, c)
			report.Outcomes[i] = out
			r.finishConfiguration(ctx, s, out)
			return err
		})
	}
	runErr := g.Wait()
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	r.setState(Done)
	report.Duration = time.Since(start)
	report.Stages = s.timer.snapshot()

	r.complete(ctx, s, report)

	if runErr != nil {
		slog.Error("sweep_aborted",
			slog.String("run_id", s.runID),
			slog.String("error", runErr.Error()))
		return report, runErr
	}
	slog.Info("sweep_complete",
		slog.String("run_id", s.runID),
		slog.Int("evaluated", report.Count(StatusEvaluated)),
		slog.Int("failed", report.Count(StatusFailed)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// prepare parses the inputs and creates the artifact directories.
func (r *Runner) prepare(ctx context.Context, s *sweep, configs []Configuration) error {
	r.setState(ParsingCorpus)
	parseStart := time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageParsing,
		Total:   s.total,
		Message: "Parsing corpus and queries...",
	})

	records, err := corpus.ParseFile(s.cfg.CorpusPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return cerrors.FormatError("corpus contains no records", nil).WithDetail("path", s.cfg.CorpusPath)
	}
	s.records = records

	raw, err := os.ReadFile(s.cfg.QueriesPath)
	if err != nil {
		return cerrors.IOError("failed to read queries", err).WithDetail("path", s.cfg.QueriesPath)
	}

	// Query text is tokenizer specific, so the set is parsed once per tokenizer.
	s.queries = make(map[variant.Tokenizer]tokenizerQueries)
	for _, c := range configs {
		if _, ok := s.queries[c.Tokenizer]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.queries[c.Tokenizer] = parseQueries(raw, c.Tokenizer)
	}

	for _, dir := range s.cfg.Layout.dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cerrors.New(cerrors.ErrCodeDirCreate, "failed to create artifact directory", err).
				WithDetail("path", dir)
		}
	}

	s.timer.add(ParsingCorpus, time.Since(parseStart))
	slog.Debug("sweep_inputs_parsed",
		slog.Int("records", len(records)),
		slog.Int("tokenizers", len(s.queries)))
	return nil
}

func parseQueries(raw []byte, tok variant.Tokenizer) tokenizerQueries {
	norm, err := engine.NewCachedNormalizer(tok, engine.DefaultNormalizerCacheSize)
	if err != nil {
		return tokenizerQueries{err: err}
	}
	queries, err := corpus.ParseQueries(bytes.NewReader(raw), norm.Func())
	return tokenizerQueries{queries: queries, err: err}
}

// runConfiguration drives one configuration through the pipeline. The
// returned error is non-nil only when the whole sweep must stop.
func (r *Runner) runConfiguration(ctx context.Context, s *sweep, c Configuration) (out Outcome, err error) {
	start := time.Now()
	layout := s.cfg.Layout
	out = Outcome{
		Config:      c,
		ID:          c.ID(),
		IndexPath:   layout.IndexPath(c),
		ResultsPath: layout.ResultsPath(c),
		ReportPath:  layout.ReportPath(c),
	}
	defer func() { out.Duration = time.Since(start) }()

	fail := func(err error) (Outcome, error) {
		out.Status = StatusFailed
		out.Err = err
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if cerrors.IsFatal(err) {
			return out, err
		}
		return out, nil
	}

	enter := func(st State) {
		out.Stage = st
		r.setState(st)
		r.progress(s, ui.ProgressEvent{Stage: st.uiStage(), Config: out.ID, Message: st.String()})
	}

	q := s.queries[c.Tokenizer]
	if q.err != nil {
		out.Stage = ParsingCorpus
		return fail(q.err)
	}

	enter(Building)
	lock := flock.New(out.IndexPath + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("index path is locked")
		}
		return fail(cerrors.IndexBuildError("failed to lock index path", err).WithDetail("path", out.IndexPath))
	}
	defer func() { _ = lock.Unlock() }()

	stageStart := time.Now()
	idx, err := r.engine.Build(ctx, out.IndexPath, s.records, engine.BuildOptions{
		Tokenizer: c.Tokenizer,
		Scoring:   c.Scoring,
	})
	r.observe(s, Building, time.Since(stageStart))
	if err != nil {
		return fail(err)
	}
	defer func() { _ = idx.Close() }()

	enter(Searching)
	var searchTime time.Duration
	search := trec.IndexSearch(idx, engine.Request{
		Scoring: c.Scoring,
		Boosts:  c.Boosts(),
		TopK:    s.cfg.TopK,
	})
	timed := func(ctx context.Context, query string) ([]engine.Hit, error) {
		t := time.Now()
		hits, err := search(ctx, query)
		searchTime += time.Since(t)
		return hits, err
	}

	stageStart = time.Now()
	st, err := trec.WriteFile(ctx, out.ResultsPath, q.queries, timed, trec.Options{
		TopK:   s.cfg.TopK,
		RunTag: s.cfg.RunTag,
	})
	r.observe(s, Searching, searchTime)
	r.observe(s, Writing, time.Since(stageStart)-searchTime)
	out.Stage = Writing
	out.Queries, out.EmptyQueries, out.FailedQueries, out.Lines = st.Queries, st.EmptyQueries, st.FailedQueries, st.Lines
	if err != nil {
		return fail(err)
	}

	enter(Evaluating)
	stageStart = time.Now()
	err = r.evaluator.EvaluateToFile(ctx, s.cfg.QrelsPath, out.ResultsPath, out.ReportPath)
	r.observe(s, Evaluating, time.Since(stageStart))
	if err != nil {
		if ctx.Err() != nil {
			return fail(err)
		}
		out.Status = StatusUnevaluated
		out.Err = err
		slog.Warn("evaluation_failed",
			slog.String("config", out.ID),
			slog.String("error", err.Error()))
		if r.metrics != nil {
			r.metrics.EvaluatorFailures.Inc()
		}
		return out, nil
	}

	out.Status = StatusEvaluated
	if v, err := aggregate.ReportMAP(out.ReportPath); err == nil {
		out.MAP, out.HasMAP = v, true
	} else {
		slog.Warn("report_without_map",
			slog.String("config", out.ID),
			slog.String("error", err.Error()))
	}
	return out, nil
}

func (r *Runner) skipped(s *sweep, c Configuration, cause error) Outcome {
	out := Outcome{
		Config:      c,
		ID:          c.ID(),
		Status:      StatusSkipped,
		Stage:       Idle,
		Err:         cause,
		IndexPath:   s.cfg.Layout.IndexPath(c),
		ResultsPath: s.cfg.Layout.ResultsPath(c),
		ReportPath:  s.cfg.Layout.ReportPath(c),
	}
	return out
}

func (r *Runner) observe(s *sweep, stage State, d time.Duration) {
	s.timer.add(stage, d)
	if r.metrics != nil {
		r.metrics.ObserveStage(stage.uiStage().String(), d)
	}
}

// progress sends an event carrying the current completion count.
func (r *Runner) progress(s *sweep, ev ui.ProgressEvent) {
	s.mu.Lock()
	ev.Current = s.completed
	s.mu.Unlock()
	ev.Total = s.total
	r.renderer.UpdateProgress(ev)
}

// finishConfiguration reports a finished configuration to the renderer,
// the ledger and the metrics.
func (r *Runner) finishConfiguration(ctx context.Context, s *sweep, out Outcome) {
	s.mu.Lock()
	s.completed++
	current := s.completed
	s.mu.Unlock()

	msg := out.Status
	if out.Err != nil {
		r.renderer.AddError(ui.ErrorEvent{
			Config: out.ID,
			Err:    out.Err,
			IsWarn: out.Status == StatusUnevaluated,
		})
		if out.Status == StatusFailed {
			slog.Error("configuration_failed",
				slog.String("config", out.ID),
				slog.String("stage", out.Stage.String()),
				slog.String("error", out.Err.Error()))
		}
	}
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   out.Stage.uiStage(),
		Current: current,
		Total:   s.total,
		Config:  out.ID,
		Message: msg,
		MAP:     out.MAP,
		HasMAP:  out.HasMAP,
	})

	slog.Info("configuration_done",
		slog.String("config", out.ID),
		slog.String("status", out.Status),
		slog.Int("lines", out.Lines),
		slog.Int("failed_queries", out.FailedQueries),
		slog.Duration("duration", out.Duration))

	if r.metrics != nil {
		r.metrics.ObserveOutcome(out.Status)
		r.metrics.ObserveQueries(out.Queries-out.EmptyQueries-out.FailedQueries, out.EmptyQueries, out.FailedQueries)
		r.metrics.RunLinesTotal.Add(float64(out.Lines))
		if out.HasMAP {
			r.metrics.SetMAP(out.Config.Tokenizer.String(), out.Config.Scoring.String(), out.ID, out.MAP)
		}
	}

	r.recordOutcome(ctx, s, out)
}

// recordOutcome stores out in the ledger. The outcome is recorded even when
// the sweep is being cancelled.
func (r *Runner) recordOutcome(ctx context.Context, s *sweep, out Outcome) {
	if r.ledger == nil || s.runID == "" {
		return
	}
	rec := ledger.Outcome{
		RunID:         s.runID,
		ConfigID:      out.ID,
		Tokenizer:     out.Config.Tokenizer.String(),
		Scoring:       out.Config.Scoring.String(),
		TitleBoost:    out.Config.TitleBoost,
		BodyBoost:     out.Config.BodyBoost,
		Status:        out.Status,
		Stage:         out.Stage.String(),
		Lines:         out.Lines,
		FailedQueries: out.FailedQueries,
		MAP:           out.MAP,
		HasMAP:        out.HasMAP,
		Duration:      out.Duration,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if err := r.ledger.RecordOutcome(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("ledger_record_failed",
			slog.String("config", out.ID),
			slog.String("error", err.Error()))
	}
}

// complete closes the run in the ledger, writes metrics and tells the
// renderer the sweep is over.
func (r *Runner) complete(ctx context.Context, s *sweep, report *Report) {
	ctx = context.WithoutCancel(ctx)

	if r.ledger != nil && s.runID != "" {
		if _, err := r.ledger.FinishRun(ctx, s.runID); err != nil {
			slog.Warn("ledger_finish_failed", slog.String("error", err.Error()))
		}
	}

	if r.metrics != nil {
		r.metrics.FinishSweep(report.Duration, time.Now())
		if s.cfg.MetricsTextfile != "" {
			if err := r.metrics.WriteTextfile(s.cfg.MetricsTextfile); err != nil {
				slog.Warn("metrics_write_failed", slog.String("error", err.Error()))
			}
		}
	}

	stats := ui.CompletionStats{
		Configurations: len(report.Outcomes),
		Succeeded:      report.Count(StatusEvaluated),
		Unevaluated:    report.Count(StatusUnevaluated),
		Failed:         report.Count(StatusFailed),
		Duration:       report.Duration,
		Stages:         report.Stages,
	}
	for _, o := range report.Outcomes {
		if o.Err == nil {
			continue
		}
		if o.Status == StatusUnevaluated {
			stats.Warnings++
		} else if o.Status == StatusFailed {
			stats.Errors++
		}
	}
	if best, ok := report.Best(); ok {
		stats.BestConfig, stats.BestMAP = best.ID, best.MAP
	}
	r.renderer.Complete(stats)
}
