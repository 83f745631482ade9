package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cranbench/internal/aggregate"
	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/output"
	"github.com/Aman-CERP/cranbench/internal/ui"
)

type summaryFlags struct {
	reports string
	out     string
	reduced bool
	watch   bool
	top     int
	runs    int
	json    bool
}

func newSummaryCmd() *cobra.Command {
	var f summaryFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate trec_eval reports into the ranked CSV",
		Long: `Read every report in the reports directory, extract the trec_eval metrics,
derive recall and write one CSV row per configuration ranked by MAP.

Configurations of the latest recorded sweep that have no report are kept as
empty rows at the end, so a failed evaluation is visible in the summary.
Use --watch to rewrite the summary whenever a report changes.`,
		Example: `  # Rewrite the summary from the configured reports directory
  cranbench summary

  # Reduced layout from another directory
  cranbench summary --reports old_reports --out old.csv --reduced

  # Keep the summary current while a sweep runs elsewhere
  cranbench summary --watch

  # List recorded sweeps
  cranbench summary --runs 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if f.runs > 0 {
				return runListSweeps(ctx, cmd, cfg, f.runs)
			}
			return runSummary(ctx, cmd, cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.reports, "reports", "", "Report directory (default: artifacts.reports_dir)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Summary CSV path (default: summary.output)")
	cmd.Flags().BoolVar(&f.reduced, "reduced", false, "Omit boost flag and Recall columns")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "Rewrite the summary when reports change")
	cmd.Flags().IntVarP(&f.top, "top", "n", 10, "Rows shown in the table (0 for all)")
	cmd.Flags().IntVar(&f.runs, "runs", 0, "List the N most recent sweeps instead")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print rows as JSON instead of a table")

	return cmd
}

func runSummary(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f summaryFlags) error {
	layout, err := summaryLayout(cfg, f.reduced)
	if err != nil {
		return err
	}

	dir := cfg.Artifacts.ReportsDir
	opts := aggregate.Options{}
	if f.reports != "" {
		dir = f.reports
	} else if led := openLedger(cfg); led != nil {
		// Expected ids only describe the configured reports directory.
		opts.Expected = expectedIDs(ctx, led)
		_ = led.Close()
	}

	path := cfg.Summary.Output
	if f.out != "" {
		path = f.out
	}

	out := output.NewStyled(cmd.OutOrStdout(), ui.GetStyles(ui.DetectNoColor()))

	emit := func(rows []aggregate.Row) error {
		if err := aggregate.WriteCSVFile(path, rows, layout); err != nil {
			return err
		}
		if f.json {
			return writeRowsJSON(cmd, rows)
		}
		out.SummaryTable(rows, f.top)
		out.Successf("%d configuration(s) written to %s", len(rows), path)
		return nil
	}

	if !f.watch {
		rows, err := aggregate.Aggregate(dir, opts)
		if err != nil {
			return err
		}
		return emit(rows)
	}

	out.Statusf("👀", "Watching %s (Ctrl+C to stop)", dir)
	return aggregate.Watch(ctx, dir, opts, aggregate.DefaultDebounce, func(rows []aggregate.Row, err error) {
		if err == nil {
			err = emit(rows)
		}
		if err != nil {
			slog.Warn("summary_refresh_failed", slog.String("error", err.Error()))
			out.Warning(err.Error())
		}
	})
}

// summaryRow is the JSON form of one summary row.
type summaryRow struct {
	Config    string            `json:"config"`
	Tokenizer string            `json:"tokenizer"`
	Scoring   string            `json:"scoring"`
	Metrics   map[string]string `json:"metrics,omitempty"`
	Recall    string            `json:"recall,omitempty"`
	Missing   bool              `json:"missing,omitempty"`
}

func writeRowsJSON(cmd *cobra.Command, rows []aggregate.Row) error {
	out := make([]summaryRow, len(rows))
	for i, r := range rows {
		out[i] = summaryRow{
			Config:    r.ID,
			Tokenizer: r.Tokenizer,
			Scoring:   r.Scoring,
			Metrics:   r.Values,
			Recall:    r.Recall,
			Missing:   r.Missing,
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runListSweeps(ctx context.Context, cmd *cobra.Command, cfg *config.Config, limit int) error {
	out := output.NewStyled(cmd.OutOrStdout(), ui.GetStyles(ui.DetectNoColor()))

	led := openLedger(cfg)
	if led == nil {
		out.Warning("No run ledger available")
		return nil
	}
	defer func() { _ = led.Close() }()

	runs, err := led.Runs(ctx, limit)
	if err != nil {
		return err
	}
	out.Runs(runs)
	return nil
}
