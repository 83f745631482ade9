package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/cranbench/internal/corpus"
	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
	"github.com/Aman-CERP/cranbench/internal/variant"
)

const (
	metaFile = "cranbench_meta.json"

	// DefaultBatchSize is the number of documents per bleve batch.
	DefaultBatchSize = 500
)

// indexMeta is written next to the bleve files so an index can be reopened
// with the options it was built with.
type indexMeta struct {
	Tokenizer variant.Tokenizer `json:"tokenizer"`
	Scoring   variant.Scoring   `json:"scoring"`
	Documents int               `json:"documents"`
	BuiltAt   time.Time         `json:"built_at"`
}

// BleveEngine builds bleve indexes.
type BleveEngine struct {
	batchSize int
}

// Option configures a BleveEngine.
type Option func(*BleveEngine)

// WithBatchSize sets the number of documents written per batch.
func WithBatchSize(n int) Option {
	return func(e *BleveEngine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewBleveEngine creates an engine.
func NewBleveEngine(opts ...Option) *BleveEngine {
	e := &BleveEngine{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build implements IndexEngine. The directory at path is removed first, so a
// rebuild never mixes documents from an earlier run.
func (e *BleveEngine) Build(ctx context.Context, path string, records []corpus.Record, opts BuildOptions) (Index, error) {
	if len(records) == 0 {
		return nil, cerrors.IndexBuildError("no records to index", nil).WithDetail("path", path)
	}

	im, err := newIndexMapping(opts)
	if err != nil {
		return nil, cerrors.IndexBuildError("failed to create index mapping", err)
	}
	analyzer := im.AnalyzerNamed(im.DefaultAnalyzer)
	if analyzer == nil {
		return nil, cerrors.IndexBuildError(fmt.Sprintf("analyzer %s not registered", im.DefaultAnalyzer), nil)
	}

	docs := dedupe(records)

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if err := os.RemoveAll(path); err != nil {
			return nil, cerrors.IndexBuildError("failed to clear previous index", err).WithDetail("path", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cerrors.IndexBuildError("failed to create index directory", err).WithDetail("path", path)
		}
		idx, err = bleve.New(path, im)
	}
	if err != nil {
		return nil, cerrors.IndexBuildError("failed to create index", err).WithDetail("path", path)
	}

	fail := func(msg string, cause error) (Index, error) {
		_ = idx.Close()
		if path != "" {
			_ = os.RemoveAll(path)
		}
		return nil, cerrors.IndexBuildError(msg, cause).WithDetail("path", path)
	}

	for start := 0; start < len(docs); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return fail("index build cancelled", err)
		}
		end := min(start+e.batchSize, len(docs))

		batch := idx.NewBatch()
		for _, r := range docs[start:end] {
			if err := batch.Index(r.ID, toDocument(r)); err != nil {
				return fail(fmt.Sprintf("failed to index document %s", r.ID), err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			return fail("failed to execute batch", err)
		}
	}

	stats := collectFieldStats(analyzer, docs)

	if path != "" {
		if err := stats.save(filepath.Join(path, fieldStatsFile)); err != nil {
			return fail("failed to write field statistics", err)
		}
		meta := indexMeta{Tokenizer: opts.Tokenizer, Scoring: opts.Scoring, Documents: len(docs), BuiltAt: time.Now().UTC()}
		data, _ := json.Marshal(meta)
		if err := os.WriteFile(filepath.Join(path, metaFile), data, 0o644); err != nil {
			return fail("failed to write index metadata", err)
		}
	}

	slog.Debug("index_built",
		slog.String("path", path),
		slog.String("tokenizer", opts.Tokenizer.String()),
		slog.String("scoring", opts.Scoring.String()),
		slog.Int("documents", len(docs)))

	return &BleveIndex{
		index:    idx,
		path:     path,
		opts:     opts,
		analyzer: analyzer,
		stats:    stats,
	}, nil
}

// Open implements IndexEngine.
func (e *BleveEngine) Open(path string) (Index, error) {
	data, err := os.ReadFile(filepath.Join(path, metaFile))
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "index metadata missing", err).
			WithDetail("path", path).
			WithSuggestion("rebuild the index with 'cranbench sweep' or 'cranbench search --rebuild'")
	}
	var meta indexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "index metadata unreadable", err).WithDetail("path", path)
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "failed to open index", err).WithDetail("path", path)
	}

	analyzer, err := analyzerFor(meta.Tokenizer)
	if err != nil {
		_ = idx.Close()
		return nil, cerrors.InternalError("failed to load analyzer", err)
	}

	return &BleveIndex{
		index:    idx,
		path:     path,
		opts:     BuildOptions{Tokenizer: meta.Tokenizer, Scoring: meta.Scoring},
		analyzer: analyzer,
	}, nil
}

// dedupe keeps the last record for each id, in first-seen order.
func dedupe(records []corpus.Record) []corpus.Record {
	pos := make(map[string]int, len(records))
	out := make([]corpus.Record, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.ID]; ok {
			slog.Warn("duplicate_document_id", slog.String("id", r.ID))
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

type document struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Bibliography string `json:"bibliography"`
	Body         string `json:"body"`
}

func toDocument(r corpus.Record) document {
	return document{
		ID:           r.ID,
		Title:        r.Title,
		Author:       r.Author,
		Bibliography: r.Bibliography,
		Body:         r.Body,
	}
}

// BleveIndex is a built bleve index.
type BleveIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	path     string
	opts     BuildOptions
	analyzer analysis.Analyzer
	closed   bool

	statsOnce sync.Once
	stats     *fieldStats
	statsErr  error
}

// Options implements Index.
func (i *BleveIndex) Options() BuildOptions { return i.opts }

// Normalize implements Index.
func (i *BleveIndex) Normalize(text string) string {
	return strings.Join(termsOf(i.analyzer, text), " ")
}

// DocCount implements Index.
func (i *BleveIndex) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return i.index.DocCount()
}

// Search implements Index.
func (i *BleveIndex) Search(ctx context.Context, req Request) (*Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.ContainsAny(req.Query, ReservedChars) {
		return nil, cerrors.QuerySyntaxError("query contains a wildcard character", nil).
			WithDetail("query", req.Query)
	}
	if req.Scoring.Native() && scoringModel(req.Scoring) != scoringModel(i.opts.Scoring) {
		return nil, cerrors.ValidationError(
			fmt.Sprintf("index was built for %s and cannot rank with %s", i.opts.Scoring, req.Scoring), nil)
	}

	terms := termsOf(i.analyzer, req.Query)
	if len(terms) == 0 || req.TopK <= 0 {
		return &Result{Hits: []Hit{}}, nil
	}

	boosts := req.Boosts
	if boosts.Title == 0 && boosts.Body == 0 {
		boosts = DefaultBoosts
	}

	var allowed map[string]struct{}
	if !req.Filters.IsZero() {
		var err error
		allowed, err = i.filterSet(ctx, req.Filters)
		if err != nil {
			return nil, err
		}
		if allowed != nil && len(allowed) == 0 {
			return &Result{Hits: []Hit{}}, nil
		}
	}

	rescore := !req.Scoring.Native()
	size := req.TopK
	if rescore || allowed != nil {
		n, err := i.index.DocCount()
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "failed to count documents", err)
		}
		size = int(n)
	}

	sreq := bleve.NewSearchRequest(i.rankQuery(req.Query, boosts))
	sreq.Size = size
	sreq.SortBy([]string{"-_score", "_id"})
	if req.IncludeStored {
		sreq.Fields = []string{FieldTitle, FieldAuthor, FieldBody}
	}

	res, err := i.index.SearchInContext(ctx, sreq)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "search failed", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		if allowed != nil {
			if _, ok := allowed[h.ID]; !ok {
				continue
			}
		}
		hit := Hit{ID: h.ID, Score: h.Score}
		if req.IncludeStored {
			hit.Title = storedString(h.Fields, FieldTitle)
			hit.Author = storedString(h.Fields, FieldAuthor)
			hit.Body = storedString(h.Fields, FieldBody)
		}
		hits = append(hits, hit)
	}

	total := res.Total
	if allowed != nil {
		total = uint64(len(hits))
	}

	if rescore {
		stats, err := i.fieldStats()
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeCorruptIndex, "field statistics unavailable", err).WithDetail("path", i.path)
		}
		for n := range hits {
			hits[n].Score = stats.score(req.Scoring, hits[n].ID, terms, boosts)
		}
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	}

	if len(hits) > req.TopK {
		hits = hits[:req.TopK]
	}

	return &Result{Hits: hits, Total: total}, nil
}

// rankQuery matches text against title and body with per-field boosts.
func (i *BleveIndex) rankQuery(text string, boosts Boosts) query.Query {
	title := bleve.NewMatchQuery(text)
	title.SetField(FieldTitle)
	title.SetBoost(boosts.Title)

	body := bleve.NewMatchQuery(text)
	body.SetField(FieldBody)
	body.SetBoost(boosts.Body)

	return bleve.NewDisjunctionQuery(title, body)
}

// filterSet returns the ids of documents whose author and title contain every
// analyzed filter term. It returns nil when the filters analyze to nothing.
func (i *BleveIndex) filterSet(ctx context.Context, f Filters) (map[string]struct{}, error) {
	var clauses []query.Query
	for field, text := range map[string]string{FieldAuthor: f.Author, FieldTitle: f.Title} {
		for _, term := range termsOf(i.analyzer, text) {
			tq := bleve.NewTermQuery(term)
			tq.SetField(field)
			clauses = append(clauses, tq)
		}
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	n, err := i.index.DocCount()
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "failed to count documents", err)
	}

	sreq := bleve.NewSearchRequest(bleve.NewConjunctionQuery(clauses...))
	sreq.Size = int(n)
	res, err := i.index.SearchInContext(ctx, sreq)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "filter search failed", err)
	}

	allowed := make(map[string]struct{}, len(res.Hits))
	for _, h := range res.Hits {
		allowed[h.ID] = struct{}{}
	}
	return allowed, nil
}

func (i *BleveIndex) fieldStats() (*fieldStats, error) {
	i.statsOnce.Do(func() {
		if i.stats != nil {
			return
		}
		i.stats, i.statsErr = loadFieldStats(filepath.Join(i.path, fieldStatsFile))
	})
	return i.stats, i.statsErr
}

// Close implements Index.
func (i *BleveIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}

func storedString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

var (
	_ IndexEngine = (*BleveEngine)(nil)
	_ Index       = (*BleveIndex)(nil)
)
