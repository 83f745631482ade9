package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cranbench/internal/config"
	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/engine"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/experiment"
	"github.com/Aman-CERP/cranbench/internal/output"
	"github.com/Aman-CERP/cranbench/internal/trec"
	"github.com/Aman-CERP/cranbench/internal/ui"
)

// searchTitleWidth is where result titles are cut.
const searchTitleWidth = 60

// searchOptions holds CLI flags for search.
type searchOptions struct {
	tokenizer  string
	scoring    string
	titleBoost float64
	bodyBoost  float64
	author     string
	title      string
	top        int
	writeRun   string
	rebuild    bool
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the corpus with one configuration",
		Long: `Search the corpus with a single configuration. The configuration's index
from the last sweep is reused when present; otherwise it is built first.

With a query on the command line the results are printed once. Without one,
queries are read from stdin line by line until EOF or ":q".

--write-run runs the whole query set instead and writes a TREC run file.`,
		Example: `  # One-off search
  cranbench search "boundary layer transition" --tokenizer english --scoring bm25

  # Only documents whose author matches
  cranbench search "heat transfer" --author "lees"

  # Interactive
  cranbench search --scoring lmdirichlet --title-boost 2

  # Run file for one configuration
  cranbench search --tokenizer custom --scoring bm25 --write-run custom_bm25.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSearch(ctx, cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.tokenizer, "tokenizer", "english", "Tokenizer variant")
	cmd.Flags().StringVar(&opts.scoring, "scoring", "bm25", "Scoring variant")
	cmd.Flags().Float64Var(&opts.titleBoost, "title-boost", 1, "Title field weight")
	cmd.Flags().Float64Var(&opts.bodyBoost, "body-boost", 1, "Body field weight")
	cmd.Flags().StringVar(&opts.author, "author", "", "Only documents whose author matches")
	cmd.Flags().StringVar(&opts.title, "title", "", "Only documents whose title matches")
	cmd.Flags().IntVarP(&opts.top, "top", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.writeRun, "write-run", "", "Run the query set and write a TREC run file")
	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Rebuild the index even if one exists")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func (o searchOptions) configuration() (experiment.Configuration, error) {
	toks, err := parseTokenizers([]string{o.tokenizer})
	if err != nil {
		return experiment.Configuration{}, err
	}
	scs, err := parseScorings([]string{o.scoring})
	if err != nil {
		return experiment.Configuration{}, err
	}
	if len(toks) != 1 || len(scs) != 1 {
		return experiment.Configuration{}, cerrors.ValidationError("search takes exactly one tokenizer and one scoring", nil)
	}
	if o.titleBoost < 0 || o.bodyBoost < 0 || o.titleBoost+o.bodyBoost == 0 {
		return experiment.Configuration{}, cerrors.ValidationError(
			fmt.Sprintf("invalid boosts %g:%g", o.titleBoost, o.bodyBoost), nil).
			WithSuggestion("boosts must be non-negative and not both zero")
	}
	return experiment.Configuration{
		Tokenizer:  toks[0],
		Scoring:    scs[0],
		TitleBoost: o.titleBoost,
		BodyBoost:  o.bodyBoost,
	}, nil
}

func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return cerrors.ValidationError("unknown format "+opts.format, nil).WithSuggestion("use text or json")
	}
	c, err := opts.configuration()
	if err != nil {
		return err
	}

	out := output.NewStyled(cmd.OutOrStdout(), ui.GetStyles(ui.DetectNoColor()))

	idx, err := openOrBuild(ctx, cmd.ErrOrStderr(), engine.NewBleveEngine(), cfg, c, opts.rebuild)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	if opts.writeRun != "" {
		return writeRun(ctx, out, cfg, idx, c, opts.writeRun)
	}

	req := engine.Request{
		Scoring:       c.Scoring,
		Boosts:        c.Boosts(),
		Filters:       engine.Filters{Author: opts.author, Title: opts.title},
		TopK:          opts.top,
		IncludeStored: true,
	}

	if strings.TrimSpace(query) != "" {
		return searchOnce(ctx, cmd, out, idx, req, query, opts.format)
	}
	return searchLoop(ctx, cmd, out, idx, req, opts.format)
}

// openOrBuild reuses the configuration's index from the last sweep, building
// it when it is missing or unreadable. Both paths hold the lock the sweep
// takes on the index, so a search never opens an index mid-build.
func openOrBuild(ctx context.Context, progress io.Writer, eng engine.IndexEngine, cfg *config.Config, c experiment.Configuration, rebuild bool) (engine.Index, error) {
	path := artifactLayout(cfg).IndexPath(c)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDirCreate, "failed to create index root", err).
			WithDetail("path", filepath.Dir(path))
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = errors.New("index path is locked")
		}
		return nil, cerrors.IndexBuildError("failed to lock index path", err).WithDetail("path", path)
	}
	defer func() { _ = lock.Unlock() }()

	if !rebuild {
		idx, err := eng.Open(path)
		if err == nil {
			slog.Debug("search_index_reused", slog.String("path", path))
			return idx, nil
		}
		slog.Debug("search_index_unavailable", slog.String("path", path), slog.String("error", err.Error()))
	}

	records, err := corpus.ParseFile(cfg.Inputs.Corpus)
	if err != nil {
		return nil, err
	}

	_, _ = fmt.Fprintf(progress, "Building %s over %d records...\n", c.ID(), len(records))
	return eng.Build(ctx, path, records, engine.BuildOptions{Tokenizer: c.Tokenizer, Scoring: c.Scoring})
}

func writeRun(ctx context.Context, out *output.Writer, cfg *config.Config, idx engine.Index, c experiment.Configuration, path string) error {
	normalizer, err := engine.NewCachedNormalizer(c.Tokenizer, engine.DefaultNormalizerCacheSize)
	if err != nil {
		return err
	}
	queries, err := corpus.ParseQueriesFile(cfg.Inputs.Queries, normalizer.Func())
	if err != nil {
		return err
	}

	search := trec.IndexSearch(idx, engine.Request{
		Scoring: c.Scoring,
		Boosts:  c.Boosts(),
		TopK:    cfg.Sweep.TopK,
	})
	st, err := trec.WriteFile(ctx, path, queries, search, trec.Options{TopK: cfg.Sweep.TopK, RunTag: cfg.Sweep.RunTag})
	if err != nil {
		return err
	}

	out.Successf("%d lines for %d queries written to %s", st.Lines, st.Queries, path)
	if st.FailedQueries > 0 {
		out.Warningf("%d queries failed; see the log", st.FailedQueries)
	}
	if st.EmptyQueries > 0 {
		out.Statusf("", "%d queries returned no documents", st.EmptyQueries)
	}
	return nil
}

func searchOnce(ctx context.Context, cmd *cobra.Command, out *output.Writer, idx engine.Index, req engine.Request, query, format string) error {
	req.Query = trec.Sanitize(query)
	start := time.Now()
	res, err := idx.Search(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.String("query", query),
		slog.Int("results", len(res.Hits)),
		slog.Duration("duration", time.Since(start)))

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(searchResultJSON{Query: query, Total: res.Total, Hits: res.Hits})
	}
	out.Hits(res.Hits, res.Total, searchTitleWidth)
	return nil
}

// searchResultJSON is the JSON form of one search.
type searchResultJSON struct {
	Query string       `json:"query"`
	Total uint64       `json:"total"`
	Hits  []engine.Hit `json:"hits"`
}

// searchLoop reads queries from stdin until EOF or ":q". A failed query is
// reported and the loop goes on.
func searchLoop(ctx context.Context, cmd *cobra.Command, out *output.Writer, idx engine.Index, req engine.Request, format string) error {
	interactive := ui.IsTTY(cmd.OutOrStdout())
	prompt := func() {
		if interactive {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), "cranbench> ")
		}
	}

	if interactive {
		out.Statusf("🔍", "%s_%s, %d documents shown per query. Enter :q to quit.", idx.Options().Tokenizer, idx.Options().Scoring, req.TopK)
	}

	sc := bufio.NewScanner(cmd.InOrStdin())
	prompt()
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			prompt()
			continue
		case ":q", ":quit", ":exit":
			return nil
		}

		if err := searchOnce(ctx, cmd, out, idx, req, line, format); err != nil {
			out.Error(strings.TrimSpace(cerrors.FormatForCLI(err)))
		}
		prompt()
	}
	return sc.Err()
}
