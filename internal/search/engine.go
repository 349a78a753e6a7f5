package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragstore/internal/chunk"
	"github.com/Aman-CERP/ragstore/internal/embed"
	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
	"github.com/Aman-CERP/ragstore/internal/store"
)

// Engine is a hybrid retrieval engine over one store directory. Mutations
// are serialized; searches run concurrently under a read lock.
type Engine struct {
	config     EngineConfig
	chunker    *chunk.Chunker
	embedder   embed.Embedder
	docs       *store.SQLiteDocumentStore
	keyword    store.KeywordIndex
	vectors    *store.VectorIndex
	lock       *store.DirLock
	vectorPath string

	mu     sync.RWMutex
	closed bool
}

// EngineOption configures the engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	embedder embed.Embedder
	keyword  func(docs *store.SQLiteDocumentStore) (store.KeywordIndex, error)
}

// WithEmbedder injects an embedder instead of building one from
// EngineConfig.Embeddings. The engine takes ownership and closes it.
func WithEmbedder(e embed.Embedder) EngineOption {
	return func(o *engineOptions) {
		o.embedder = e
	}
}

// WithKeywordIndex injects a keyword index built over the engine's
// document store, replacing EngineConfig.KeywordBackend.
func WithKeywordIndex(fn func(docs *store.SQLiteDocumentStore) (store.KeywordIndex, error)) EngineOption {
	return func(o *engineOptions) {
		o.keyword = fn
	}
}

// New opens the engine. With a StoragePath it locks the directory, opens
// documents.db and the keyword index, and loads the vector index, rebuilding
// it from stored embeddings when the file is missing or corrupt.
func New(ctx context.Context, cfg EngineConfig, opts ...EngineOption) (_ *Engine, err error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if cfg.DefaultAlpha < 0 || cfg.DefaultAlpha > 1 || math.IsNaN(cfg.DefaultAlpha) {
		return nil, ragerrors.ConfigurationError(
			fmt.Sprintf("hybrid alpha must be in [0,1], got %v", cfg.DefaultAlpha), nil)
	}

	chunker, err := chunk.NewChunker(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	e := &Engine{config: cfg, chunker: chunker}

	// Undo partial construction on any failure below.
	var cleanups []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i]()
		}
	}()

	docsPath := ""
	if cfg.StoragePath != "" {
		if mkErr := os.MkdirAll(cfg.StoragePath, 0755); mkErr != nil {
			return nil, ragerrors.StorageError("failed to create storage directory", mkErr).
				WithDetail("path", cfg.StoragePath)
		}
		e.lock = store.NewDirLock(cfg.StoragePath)
		if err = e.lock.TryLock(); err != nil {
			return nil, err
		}
		cleanups = append(cleanups, e.lock.Unlock)
		docsPath = filepath.Join(cfg.StoragePath, store.DocumentsFile)
		e.vectorPath = filepath.Join(cfg.StoragePath, store.VectorsFile)
	}

	e.docs, err = store.NewSQLiteDocumentStore(docsPath, store.SQLiteOptions{CacheMB: cfg.SQLiteCacheMB})
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, e.docs.Close)

	if o.embedder != nil {
		e.embedder = o.embedder
	} else if e.embedder, err = embed.NewEmbedder(ctx, cfg.Embeddings); err != nil {
		return nil, err
	}
	cleanups = append(cleanups, e.embedder.Close)

	if o.keyword != nil {
		e.keyword, err = o.keyword(e.docs)
	} else {
		e.keyword, err = store.NewKeywordIndex(cfg.KeywordBackend, cfg.StoragePath, e.docs)
	}
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, e.keyword.Close)

	vcfg := cfg.Vector
	vcfg.Dimensions = e.embedder.Dimensions()
	if e.vectors, err = store.NewVectorIndex(vcfg); err != nil {
		return nil, err
	}
	cleanups = append(cleanups, e.vectors.Close)

	if err = e.openVectors(ctx); err != nil {
		return nil, err
	}
	if err = e.syncKeywordIndex(ctx); err != nil {
		return nil, err
	}

	slog.Info("engine_opened",
		slog.String("path", cfg.StoragePath),
		slog.String("embedder", e.embedder.ModelName()),
		slog.Int("dimensions", vcfg.Dimensions),
		slog.String("vector_backend", e.vectors.Backend()),
		slog.String("keyword_backend", e.keyword.Backend()),
		slog.Int("vectors", e.vectors.Len()))
	return e, nil
}

// openVectors loads the persisted vector index. A missing or corrupt file
// is rebuilt from the embeddings stored with each document; a dimension
// mismatch is fatal because the stored embeddings would not fit either.
func (e *Engine) openVectors(ctx context.Context) error {
	if e.vectorPath == "" {
		return nil
	}
	if store.VectorFileExists(e.vectorPath) {
		err := e.vectors.Load(e.vectorPath)
		if err == nil {
			return nil
		}
		if ragerrors.GetCode(err) == ragerrors.ErrCodeDimensionMismatch {
			return err
		}
		slog.Warn("vector_index_load_failed",
			slog.String("path", e.vectorPath),
			slog.String("error", err.Error()),
			slog.String("recovery", "rebuild from stored embeddings"))
	}

	count, err := e.docs.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return e.rebuildVectors(ctx)
}

// rebuildVectors re-adds every stored embedding and saves the index.
func (e *Engine) rebuildVectors(ctx context.Context) error {
	dims := e.vectors.Dimensions()
	err := e.docs.AllEmbeddings(ctx, func(id string, vec []float32) error {
		if len(vec) != dims {
			return ragerrors.DimensionError(dims, len(vec)).WithDetail("id", id)
		}
		return e.vectors.Add(id, vec)
	})
	if err != nil {
		return err
	}
	slog.Info("vector_index_rebuilt", slog.Int("vectors", e.vectors.Len()))
	return e.saveLocked()
}

// keywordCounter is implemented by keyword indexes kept apart from the
// document store.
type keywordCounter interface {
	Count() (uint64, error)
}

// syncKeywordIndex reindexes a separate keyword index that holds fewer
// entries than the document store, as after corruption recovery.
func (e *Engine) syncKeywordIndex(ctx context.Context) error {
	counter, ok := e.keyword.(keywordCounter)
	if !ok {
		return nil
	}
	indexed, err := counter.Count()
	if err != nil {
		return err
	}
	stored, err := e.docs.Count(ctx)
	if err != nil {
		return err
	}
	if indexed >= uint64(stored) {
		return nil
	}

	ids, err := e.docs.AllIDs(ctx)
	if err != nil {
		return err
	}
	const batchSize = 256
	for start := 0; start < len(ids); start += batchSize {
		batch := make([]*store.Document, 0, batchSize)
		for _, id := range ids[start:min(start+batchSize, len(ids))] {
			doc, err := e.docs.Get(ctx, id)
			if err != nil {
				return err
			}
			batch = append(batch, doc)
		}
		if err := e.keyword.Index(ctx, batch); err != nil {
			return err
		}
	}
	slog.Info("keyword_index_resynced",
		slog.String("backend", e.keyword.Backend()),
		slog.Int("documents", len(ids)))
	return nil
}

// Search runs a hybrid query. The semantic and keyword legs each fetch 2k
// candidates in parallel; a leg whose weight is zero is skipped. A failing
// keyword leg degrades to zero keyword candidates.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	alpha := e.config.DefaultAlpha
	if opts.Alpha != nil {
		alpha = *opts.Alpha
	}
	if alpha < 0 || alpha > 1 || math.IsNaN(alpha) {
		return nil, ragerrors.New(ragerrors.ErrCodeInvalidAlpha,
			fmt.Sprintf("alpha must be in [0,1], got %v", alpha), nil)
	}
	k := opts.K
	if k <= 0 {
		k = e.config.DefaultK
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ragerrors.InternalError("engine is closed", nil)
	}

	count, err := e.docs.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []Result{}, nil
	}

	semantic, keyword, err := e.parallelSearch(ctx, query, candidateMultiplier*k, alpha)
	if err != nil {
		return nil, err
	}
	fused := Fuse(semantic, keyword, alpha)

	results, err := e.hydrate(ctx, fused, query, opts.Filter, k)
	if err != nil {
		return nil, err
	}

	slog.Debug("search_completed",
		slog.String("query", query),
		slog.Float64("alpha", alpha),
		slog.Int("semantic_candidates", len(semantic)),
		slog.Int("keyword_candidates", len(keyword)),
		slog.Int("results", len(results)))
	return results, nil
}

// parallelSearch runs the semantic and keyword legs concurrently.
func (e *Engine) parallelSearch(ctx context.Context, query string, fetch int, alpha float64) (
	semantic []store.Hit,
	keyword []store.KeywordHit,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	if alpha > 0 {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				return providerError("failed to embed query", err)
			}
			if len(vec) != e.vectors.Dimensions() {
				return ragerrors.DimensionError(e.vectors.Dimensions(), len(vec)).
					WithDetail("source", "query embedding")
			}
			semantic, err = e.vectors.Search(vec, fetch)
			return err
		})
	}

	if alpha < 1 {
		g.Go(func() error {
			hits, err := e.keyword.Search(gctx, query, fetch)
			if err != nil {
				// Don't fail the group: keyword search is best effort.
				slog.Warn("keyword_search_failed",
					slog.String("backend", e.keyword.Backend()),
					slog.String("error", err.Error()))
				return nil
			}
			keyword = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return semantic, keyword, nil
}

// hydrate loads documents for fused candidates in order, skipping rows
// that vanished and documents rejected by the filter, until k are found.
func (e *Engine) hydrate(ctx context.Context, fused []*FusedResult, query string, filter map[string]any, k int) ([]Result, error) {
	terms := store.QueryTerms(query)
	results := make([]Result, 0, min(k, len(fused)))
	for _, f := range fused {
		if len(results) == k {
			break
		}
		doc, err := e.docs.Get(ctx, f.ID)
		if err != nil {
			if ragerrors.IsNotFound(err) {
				slog.Debug("search_candidate_missing", slog.String("id", f.ID))
				continue
			}
			return nil, err
		}
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		results = append(results, Result{
			Document:      doc,
			Score:         f.Score,
			SemanticScore: f.Semantic,
			KeywordScore:  f.Keyword,
			Highlights:    extractHighlights(doc.Content, terms),
		})
	}
	return results, nil
}

// Get returns the stored document for a chunk id.
func (e *Engine) Get(ctx context.Context, id string) (*store.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ragerrors.InternalError("engine is closed", nil)
	}
	return e.docs.Get(ctx, id)
}

// Stats summarizes the store.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ragerrors.InternalError("engine is closed", nil)
	}

	chunks, err := e.docs.Count(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := e.docs.SourceCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		DocumentCount:  sources,
		ChunkCount:     chunks,
		Dimension:      e.vectors.Dimensions(),
		StoragePath:    e.config.StoragePath,
		VectorCount:    e.vectors.Len(),
		Tombstones:     e.vectors.Tombstones(),
		VectorBackend:  e.vectors.Backend(),
		KeywordBackend: e.keyword.Backend(),
		EmbedderModel:  e.embedder.ModelName(),
	}, nil
}

// Embedder returns the engine's embedder.
func (e *Engine) Embedder() embed.Embedder {
	return e.embedder
}

// saveLocked persists the vector index. Callers hold the write lock.
func (e *Engine) saveLocked() error {
	if e.vectorPath == "" {
		return nil
	}
	return e.vectors.Save(e.vectorPath)
}

// Close saves the vector index and releases every resource, joining the
// errors of each step. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	errs = append(errs, e.saveLocked())
	errs = append(errs, e.vectors.Close())
	errs = append(errs, e.keyword.Close())
	errs = append(errs, e.docs.Close())
	errs = append(errs, e.embedder.Close())
	if e.lock != nil {
		errs = append(errs, e.lock.Unlock())
	}
	return errors.Join(errs...)
}

// providerError wraps an embedding failure as a provider error unless the
// embedder already classified it.
func providerError(message string, err error) error {
	if ragerrors.GetCategory(err) == ragerrors.CategoryProvider {
		return err
	}
	return ragerrors.ProviderError(message, err)
}
