package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/ui"
)

func newCorpusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Show corpus, query and judgment statistics",
		Long: `Parse the configured corpus, query set and relevance judgments and print
what they hold, together with the status of the last recorded sweep.`,
		Example: `  cranbench corpus
  cranbench corpus --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			info, err := collectCorpusStatus(cmd, cfg)
			if err != nil {
				return err
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), jsonOutput || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func collectCorpusStatus(cmd *cobra.Command, cfg *config.Config) (ui.CorpusStatus, error) {
	info := ui.CorpusStatus{CorpusPath: cfg.Inputs.Corpus}

	records, err := corpus.ParseFile(cfg.Inputs.Corpus)
	if err != nil {
		return info, err
	}
	if fi, err := os.Stat(cfg.Inputs.Corpus); err == nil {
		info.CorpusSize = fi.Size()
	}

	st := corpus.Summarize(records)
	info.Documents = st.Records
	info.EmptyTitles = st.EmptyTitles
	info.EmptyBodies = st.EmptyBodies
	info.DuplicateIDs = len(st.DuplicateIDs)
	if st.Records > 0 {
		info.AvgBodyWords = st.BodyTokens / st.Records
	}

	queries, err := corpus.ParseQueriesFile(cfg.Inputs.Queries, corpus.Identity)
	if err != nil {
		return info, err
	}
	qrels, err := corpus.LoadQrelsFile(cfg.Inputs.Qrels)
	if err != nil {
		return info, err
	}
	judged, orphaned := corpus.Coverage(queries, qrels)
	info.Queries = len(queries)
	info.JudgedQueries = judged
	info.Judgments = qrels.Pairs()
	info.OrphanedQrels = len(orphaned)

	if led := openLedger(cfg); led != nil {
		defer func() { _ = led.Close() }()
		if run, ok, err := led.LatestRun(cmd.Context()); err == nil && ok {
			info.LastSweep = run.StartedAt
			info.LastSweepStatus = run.Status
		}
	}

	return info, nil
}
