// Package trec writes ranked results in the TREC run format consumed by
// trec_eval:
//
//	<query-id> Q0 <doc-id> <rank> <score> <run-tag>
//
// Ranks restart at 1 for every query and scores carry six decimal places.
package trec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/cranbench/internal/corpus"
	"github.com/Aman-CERP/cranbench/internal/engine"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// DefaultRunTag identifies cranbench runs in the last column.
const DefaultRunTag = "cranbench"

// DefaultTopK is the number of hits written per query.
const DefaultTopK = 100

// SearchFunc runs one sanitized query.
type SearchFunc func(ctx context.Context, query string) ([]engine.Hit, error)

// Options control a run.
type Options struct {
	TopK   int
	RunTag string
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RunTag == "" {
		o.RunTag = DefaultRunTag
	}
	return o
}

// Stats summarises a written run.
type Stats struct {
	Queries       int
	FailedQueries int
	Lines         int
	EmptyQueries  int
}

// Sanitize replaces the query grammar's wildcard characters with spaces.
func Sanitize(q string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(engine.ReservedChars, r) {
			return ' '
		}
		return r
	}, q)
}

// Line formats one run line.
func Line(queryID, docID string, rank int, score float64, runTag string) string {
	return fmt.Sprintf("%s Q0 %s %d %.6f %s", queryID, docID, rank, score, runTag)
}

// Write runs every query in order and writes the hits to w. A query whose
// search fails is logged and skipped; it never aborts the run. Context
// cancellation does.
func Write(ctx context.Context, w io.Writer, queries []corpus.Query, search SearchFunc, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	bw := bufio.NewWriter(w)
	var st Stats

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Queries++

		hits, err := search(ctx, Sanitize(q.Text))
		if err != nil {
			if ctx.Err() != nil {
				return st, ctx.Err()
			}
			st.FailedQueries++
			slog.Warn("query_failed",
				slog.String("query_id", q.ID),
				slog.String("error", err.Error()))
			continue
		}
		if len(hits) == 0 {
			st.EmptyQueries++
		}

		for i, h := range hits {
			if i >= opts.TopK {
				break
			}
			if _, err := fmt.Fprintln(bw, Line(q.ID, h.ID, i+1, h.Score, opts.RunTag)); err != nil {
				return st, err
			}
			st.Lines++
		}
	}

	return st, bw.Flush()
}

// WriteFile writes a run to path, creating or truncating it.
func WriteFile(ctx context.Context, path string, queries []corpus.Query, search SearchFunc, opts Options) (Stats, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Stats{}, cerrors.New(cerrors.ErrCodeDirCreate, "failed to create results directory", err).
			WithDetail("path", filepath.Dir(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return Stats{}, cerrors.New(cerrors.ErrCodeFileCreate, "failed to create results file", err).
			WithDetail("path", path)
	}

	st, werr := Write(ctx, f, queries, search, opts)
	cerr := f.Close()
	if werr != nil {
		return st, werr
	}
	if cerr != nil {
		return st, cerrors.New(cerrors.ErrCodeFilePermission, "failed to close results file", cerr).
			WithDetail("path", path)
	}
	return st, nil
}

// IndexSearch adapts an index to SearchFunc with fixed request parameters.
func IndexSearch(idx engine.Index, req engine.Request) SearchFunc {
	return func(ctx context.Context, query string) ([]engine.Hit, error) {
		r := req
		r.Query = query
		res, err := idx.Search(ctx, r)
		if err != nil {
			return nil, err
		}
		return res.Hits, nil
	}
}
