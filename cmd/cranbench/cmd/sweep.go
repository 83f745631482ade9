package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/engine"
	"github.com/Aman-CERP/cranbench/internal/experiment"
	"github.com/Aman-CERP/cranbench/internal/metrics"
	"github.com/Aman-CERP/cranbench/internal/output"
	"github.com/Aman-CERP/cranbench/internal/ui"
)

// sweepTableRows is how many ranked rows the sweep prints when it ends.
const sweepTableRows = 10

type sweepFlags struct {
	workers    int
	tokenizers []string
	scorings   []string
	boosts     []string
	noTUI      bool
	noSummary  bool
}

func newSweepCmd() *cobra.Command {
	var f sweepFlags

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every configuration and rank the results",
		Long: `Run the configuration sweep: for each tokenizer x scoring x boost pair,
build an index, write a TREC run file, score it with trec_eval and finally
aggregate all reports into the summary CSV.

A configuration whose build or evaluation fails is recorded and the sweep
moves on. Lists given on the command line replace the configured ones.`,
		Example: `  # Full sweep from cranbench.yaml
  cranbench sweep

  # Two tokenizers, BM25 only, four at a time
  cranbench sweep --tokenizers english,custom --scorings bm25 --workers 4

  # Plain output for logs
  cranbench sweep --no-tui`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runSweep(ctx, cmd, cfg, f)
		},
	}

	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Configurations run at once")
	cmd.Flags().StringSliceVar(&f.tokenizers, "tokenizers", nil, "Tokenizer variants to sweep")
	cmd.Flags().StringSliceVar(&f.scorings, "scorings", nil, "Scoring variants to sweep")
	cmd.Flags().StringSliceVar(&f.boosts, "boosts", nil, "Title:body boost pairs to sweep")
	cmd.Flags().BoolVar(&f.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&f.noSummary, "no-summary", false, "Skip writing the summary CSV")

	return cmd
}

// apply overlays flags the user set onto cfg and revalidates it.
func (f sweepFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Sweep.Workers = f.workers
	}
	if flags.Changed("tokenizers") {
		toks, err := parseTokenizers(f.tokenizers)
		if err != nil {
			return err
		}
		cfg.Sweep.Tokenizers = toks
	}
	if flags.Changed("scorings") {
		scs, err := parseScorings(f.scorings)
		if err != nil {
			return err
		}
		cfg.Sweep.Scorings = scs
	}
	if flags.Changed("boosts") {
		boosts, err := parseBoosts(f.boosts)
		if err != nil {
			return err
		}
		cfg.Sweep.Boosts = boosts
	}
	return cfg.Validate()
}

func runSweep(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f sweepFlags) error {
	out := output.NewStyled(cmd.OutOrStdout(), ui.GetStyles(ui.DetectNoColor()))

	layout, err := summaryLayout(cfg, false)
	if err != nil {
		return err
	}

	led := openLedger(cfg)
	if led != nil {
		defer func() { _ = led.Close() }()
	}

	deps := experiment.RunnerDependencies{
		Engine:    engine.NewBleveEngine(),
		Evaluator: newEvaluator(cfg),
	}
	if led != nil {
		deps.Ledger = led
	}
	if cfg.State.MetricsTextfile != "" {
		deps.Metrics = metrics.New()
	}

	cwd, _ := os.Getwd()
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(f.noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithWorkspace(cwd)))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
		renderer = ui.NopRenderer{}
	}
	deps.Renderer = renderer

	runner, err := experiment.NewRunner(deps)
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	report, runErr := runner.Run(ctx, runnerConfig(cfg))
	_ = renderer.Stop()
	if runErr != nil {
		return runErr
	}

	if failed := report.Count(experiment.StatusFailed); failed > 0 {
		out.Warningf("%d configuration(s) failed; see the log for details", failed)
	}
	if unevaluated := report.Count(experiment.StatusUnevaluated); unevaluated > 0 {
		out.Warningf("%d configuration(s) were not evaluated; run 'cranbench doctor' to check %s", unevaluated, cfg.Evaluator.Tool)
	}

	if f.noSummary {
		return nil
	}

	ids := make([]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		ids[i] = o.ID
	}
	rows, err := aggregate.Aggregate(cfg.Artifacts.ReportsDir, aggregate.Options{Expected: ids})
	if err != nil {
		return err
	}
	if err := aggregate.WriteCSVFile(cfg.Summary.Output, rows, layout); err != nil {
		return err
	}

	out.Newline()
	out.SummaryTable(rows, sweepTableRows)
	out.Newline()
	out.Successf("Summary written to %s", cfg.Summary.Output)
	return nil
}
