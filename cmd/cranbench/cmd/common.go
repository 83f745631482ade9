package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/engine"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/evaluator"
	"github.com/Aman-CERP/cranbench/internal/experiment"
	"github.com/Aman-CERP/cranbench/internal/ledger"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

// artifactLayout maps the artifacts section onto the sweep's layout.
func artifactLayout(cfg *config.Config) experiment.Layout {
	return experiment.Layout{
		IndexRoot:  cfg.Artifacts.IndexRoot,
		ResultsDir: cfg.Artifacts.ResultsDir,
		ReportsDir: cfg.Artifacts.ReportsDir,
	}
}

func engineBoosts(pairs []config.BoostPair) []engine.Boosts {
	out := make([]engine.Boosts, len(pairs))
	for i, p := range pairs {
		out[i] = engine.Boosts{Title: p.Title, Body: p.Body}
	}
	return out
}

func runnerConfig(cfg *config.Config) experiment.RunnerConfig {
	return experiment.RunnerConfig{
		CorpusPath:      cfg.Inputs.Corpus,
		QueriesPath:     cfg.Inputs.Queries,
		QrelsPath:       cfg.Inputs.Qrels,
		Layout:          artifactLayout(cfg),
		Tokenizers:      cfg.Sweep.Tokenizers,
		Scorings:        cfg.Sweep.Scorings,
		Boosts:          engineBoosts(cfg.Sweep.Boosts),
		TopK:            cfg.Sweep.TopK,
		RunTag:          cfg.Sweep.RunTag,
		Workers:         cfg.Sweep.Workers,
		MetricsTextfile: cfg.State.MetricsTextfile,
	}
}

func newEvaluator(cfg *config.Config) *evaluator.Evaluator {
	retry := cerrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.Evaluator.Retries
	return evaluator.New(
		evaluator.WithTool(cfg.Evaluator.Tool),
		evaluator.WithArgs(cfg.Evaluator.Args...),
		evaluator.WithTimeout(cfg.Evaluator.Timeout),
		evaluator.WithRetry(retry),
	)
}

// splitList flattens repeated and comma separated flag values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseTokenizers(values []string) ([]variant.Tokenizer, error) {
	var out []variant.Tokenizer
	for _, v := range splitList(values) {
		t, err := variant.ParseTokenizer(v)
		if err != nil {
			return nil, cerrors.ValidationError("unknown tokenizer "+v, err).
				WithSuggestion("use one of standard, english, simple, whitespace, custom")
		}
		out = append(out, t)
	}
	return out, nil
}

func parseScorings(values []string) ([]variant.Scoring, error) {
	var out []variant.Scoring
	for _, v := range splitList(values) {
		s, err := variant.ParseScoring(v)
		if err != nil {
			return nil, cerrors.ValidationError("unknown scoring "+v, err).
				WithSuggestion("use one of tfidf, bm25, lmdirichlet, lmjelinekmercer")
		}
		out = append(out, s)
	}
	return out, nil
}

func parseBoosts(values []string) ([]config.BoostPair, error) {
	var out []config.BoostPair
	for _, v := range splitList(values) {
		b, err := config.ParseBoostPair(v)
		if err != nil {
			return nil, cerrors.ValidationError("invalid boost "+v, err).
				WithSuggestion("write boosts as title:body, e.g. 2:1")
		}
		out = append(out, b)
	}
	return out, nil
}

// openLedger opens the run ledger. A ledger that cannot be opened is logged
// and skipped; sweeps and summaries work without one.
func openLedger(cfg *config.Config) *ledger.Ledger {
	if cfg.State.Ledger == "" {
		return nil
	}
	l, err := ledger.Open(cfg.State.Ledger)
	if err != nil {
		slog.Warn("ledger_unavailable",
			slog.String("path", cfg.State.Ledger),
			slog.String("error", err.Error()))
		return nil
	}
	return l
}

// expectedIDs returns the configuration ids of the latest recorded sweep.
func expectedIDs(ctx context.Context, l *ledger.Ledger) []string {
	if l == nil {
		return nil
	}
	run, ok, err := l.LatestRun(ctx)
	if err != nil || !ok {
		return nil
	}
	ids, err := l.ConfigIDs(ctx, run.ID)
	if err != nil {
		slog.Warn("ledger_read_failed", slog.String("error", err.Error()))
		return nil
	}
	return ids
}

// summaryLayout parses the configured layout, with --reduced taking
// precedence.
func summaryLayout(cfg *config.Config, reduced bool) (aggregate.Layout, error) {
	if reduced {
		return aggregate.LayoutReduced, nil
	}
	return aggregate.ParseLayout(cfg.Summary.Layout)
}
