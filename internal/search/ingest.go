package search

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/ragstore/internal/chunk"
	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
	"github.com/Aman-CERP/ragstore/internal/store"
)

// AddText stores text and returns the ids of its chunks. With doChunk false
// the whole text becomes a single document. Empty text stores nothing.
func (e *Engine) AddText(ctx context.Context, text string, metadata map[string]any, doChunk bool) ([]string, error) {
	if !doChunk {
		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}
		return e.ingest(ctx, []*chunk.Chunk{{
			ID:       chunk.DocumentID(text, e.chunker.Scheme()),
			SourceID: chunk.SourceID(text),
			Content:  text,
			Total:    1,
			Metadata: maps.Clone(metadata),
		}})
	}
	return e.ingest(ctx, e.chunker.Chunk(text, metadata))
}

// AddDocuments chunks and stores every input in one ingest. The returned
// ids are in input order. An input ID becomes the chunks' source id and is
// folded into their chunk ids.
func (e *Engine) AddDocuments(ctx context.Context, docs []DocumentInput) ([]string, error) {
	var chunks []*chunk.Chunk
	for _, d := range docs {
		chunks = append(chunks, e.chunker.ChunkSource(d.Text, d.ID, d.Metadata)...)
	}
	return e.ingest(ctx, chunks)
}

// ingest moves chunks through embed, index and persist. Embedding runs
// before any mutation, so a provider failure leaves the store untouched.
// A failure while indexing undoes what this call already wrote.
func (e *Engine) ingest(ctx context.Context, chunks []*chunk.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return []string{}, nil
	}
	start := time.Now()
	slog.Debug("ingest_chunked", slog.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, providerError("failed to embed documents", err)
	}
	if len(vecs) != len(chunks) {
		return nil, ragerrors.ProviderError("embedder returned the wrong number of vectors", nil).
			WithDetail("expected", strconv.Itoa(len(chunks))).
			WithDetail("got", strconv.Itoa(len(vecs)))
	}
	dims := e.vectors.Dimensions()
	for i, vec := range vecs {
		if len(vec) != dims {
			return nil, ragerrors.DimensionError(dims, len(vec)).WithDetail("id", chunks[i].ID)
		}
	}
	slog.Debug("ingest_embedded", slog.Int("vectors", len(vecs)))

	docs := make([]*store.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		docs[i] = &store.Document{
			ID:        c.ID,
			SourceID:  c.SourceID,
			Content:   c.Content,
			Metadata:  store.Metadata(c.Metadata),
			Embedding: vecs[i],
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ragerrors.InternalError("engine is closed", nil)
	}

	if err := e.indexLocked(ctx, docs); err != nil {
		return nil, err
	}
	slog.Debug("ingest_indexed", slog.Int("documents", len(docs)))

	if err := e.saveLocked(); err != nil {
		return nil, err
	}
	slog.Debug("ingest_persisted",
		slog.Int("documents", len(docs)),
		slog.Duration("duration", time.Since(start)))
	return ids, nil
}

// indexLocked writes docs to the store, the keyword index and the vector
// index. Capacity is checked before anything is written. A later failure
// removes the ids this call introduced and restores the rows and vectors of
// ids that were already stored.
func (e *Engine) indexLocked(ctx context.Context, docs []*store.Document) error {
	if err := e.vectors.CanAdd(len(docs)); err != nil {
		return err
	}
	prior, err := e.existingLocked(ctx, docs)
	if err != nil {
		return err
	}
	// Cleanup must run even if the caller gave up.
	cleanupCtx := context.WithoutCancel(ctx)

	if err := e.docs.Put(ctx, docs...); err != nil {
		return err
	}

	if err := e.keyword.Index(ctx, docs); err != nil {
		e.compensate(cleanupCtx, docs, prior, nil)
		return ragerrors.StorageError("failed to update keyword index", err)
	}

	added := make([]string, 0, len(docs))
	for _, d := range docs {
		if err := e.vectors.Add(d.ID, d.Embedding); err != nil {
			e.compensate(cleanupCtx, docs, prior, added)
			return err
		}
		added = append(added, d.ID)
	}
	return nil
}

// existingLocked returns the stored rows of the ids in docs that are
// already present.
func (e *Engine) existingLocked(ctx context.Context, docs []*store.Document) (map[string]*store.Document, error) {
	prior := make(map[string]*store.Document)
	for _, d := range docs {
		if _, seen := prior[d.ID]; seen {
			continue
		}
		doc, err := e.docs.Get(ctx, d.ID)
		if ragerrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		prior[d.ID] = doc
	}
	return prior, nil
}

// compensate undoes a failed ingest. Vectors in added are removed, ids new
// to the store are deleted, and rows in prior are written back together
// with their vectors. Failures are logged; CheckConsistency/Repair rebuilds
// from rows.
func (e *Engine) compensate(ctx context.Context, docs []*store.Document, prior map[string]*store.Document, added []string) {
	for _, id := range added {
		if err := e.vectors.Remove(id); err != nil && !ragerrors.IsNotFound(err) {
			slog.Warn("ingest_compensation_failed", slog.String("step", "vector"), slog.String("error", err.Error()))
		}
	}

	var fresh []string
	for _, d := range docs {
		if _, ok := prior[d.ID]; !ok {
			fresh = append(fresh, d.ID)
		}
	}
	if err := e.keyword.Delete(ctx, fresh); err != nil {
		slog.Warn("ingest_compensation_failed", slog.String("step", "keyword"), slog.String("error", err.Error()))
	}
	if err := e.docs.Delete(ctx, fresh...); err != nil {
		slog.Warn("ingest_compensation_failed", slog.String("step", "store"), slog.String("error", err.Error()))
	}

	if len(prior) > 0 {
		restore := slices.Collect(maps.Values(prior))
		if err := e.docs.Put(ctx, restore...); err != nil {
			slog.Warn("ingest_compensation_failed", slog.String("step", "restore_store"), slog.String("error", err.Error()))
		}
		if err := e.keyword.Index(ctx, restore); err != nil {
			slog.Warn("ingest_compensation_failed", slog.String("step", "restore_keyword"), slog.String("error", err.Error()))
		}
		for _, doc := range restore {
			if e.vectors.Contains(doc.ID) || len(doc.Embedding) == 0 {
				continue
			}
			if err := e.vectors.Add(doc.ID, doc.Embedding); err != nil {
				slog.Warn("ingest_compensation_failed", slog.String("step", "restore_vector"), slog.String("error", err.Error()))
			}
		}
	}
	slog.Debug("ingest_compensated",
		slog.Int("removed", len(fresh)),
		slog.Int("restored", len(prior)),
		slog.Int("vectors", len(added)))
}
