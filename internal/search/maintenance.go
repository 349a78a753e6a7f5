package search

import (
	"context"
	"log/slog"
	"slices"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Delete removes a chunk by id, or every chunk of a source when id is a
// source id. It returns the number of chunks removed; an id matching
// neither fails with a NotFoundError.
func (e *Engine) Delete(ctx context.Context, id string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ragerrors.InternalError("engine is closed", nil)
	}

	ids, err := e.resolveIDs(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := e.docs.Delete(ctx, ids...); err != nil {
		return 0, err
	}
	if err := e.keyword.Delete(ctx, ids); err != nil {
		// Rows are gone, so stale keyword hits are skipped at hydration.
		slog.Warn("keyword_delete_failed",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
	}
	for _, chunkID := range ids {
		if err := e.vectors.Remove(chunkID); err != nil && !ragerrors.IsNotFound(err) {
			return 0, err
		}
	}
	if err := e.saveLocked(); err != nil {
		return 0, err
	}

	slog.Debug("delete_completed", slog.String("id", id), slog.Int("chunks", len(ids)))
	return len(ids), nil
}

// resolveIDs expands id into chunk ids: itself when it names a chunk,
// otherwise every chunk of the source it names.
func (e *Engine) resolveIDs(ctx context.Context, id string) ([]string, error) {
	_, err := e.docs.Get(ctx, id)
	if err == nil {
		return []string{id}, nil
	}
	if !ragerrors.IsNotFound(err) {
		return nil, err
	}

	ids, err := e.docs.IDsBySource(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ragerrors.NotFoundError(id)
	}
	return ids, nil
}

// CheckConsistency compares stored documents against live vectors.
func (e *Engine) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ragerrors.InternalError("engine is closed", nil)
	}
	return e.checkLocked(ctx)
}

func (e *Engine) checkLocked(ctx context.Context) (*ConsistencyReport, error) {
	stored, err := e.docs.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	live := e.vectors.IDs()

	storedSet := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		storedSet[id] = struct{}{}
	}
	liveSet := make(map[string]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}

	report := &ConsistencyReport{
		Documents:      len(stored),
		Vectors:        len(live),
		MissingVectors: []string{},
		OrphanVectors:  []string{},
	}
	for _, id := range stored {
		if _, ok := liveSet[id]; !ok {
			report.MissingVectors = append(report.MissingVectors, id)
		}
	}
	for _, id := range live {
		if _, ok := storedSet[id]; !ok {
			report.OrphanVectors = append(report.OrphanVectors, id)
		}
	}
	slices.Sort(report.MissingVectors)
	slices.Sort(report.OrphanVectors)
	return report, nil
}

// Repair tombstones orphan vectors and re-adds missing ones from the
// stored embeddings, re-embedding documents stored without one. It returns
// the report of what it found.
func (e *Engine) Repair(ctx context.Context) (*ConsistencyReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ragerrors.InternalError("engine is closed", nil)
	}

	report, err := e.checkLocked(ctx)
	if err != nil {
		return nil, err
	}
	if report.Consistent() {
		return report, nil
	}

	for _, id := range report.OrphanVectors {
		if err := e.vectors.Remove(id); err != nil && !ragerrors.IsNotFound(err) {
			return nil, err
		}
	}

	dims := e.vectors.Dimensions()
	for _, id := range report.MissingVectors {
		doc, err := e.docs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		vec := doc.Embedding
		if len(vec) != dims {
			if vec, err = e.embedder.Embed(ctx, doc.Content); err != nil {
				return nil, providerError("failed to re-embed document", err)
			}
			if len(vec) != dims {
				return nil, ragerrors.DimensionError(dims, len(vec)).WithDetail("id", id)
			}
			doc.Embedding = vec
			if err := e.docs.Put(ctx, doc); err != nil {
				return nil, err
			}
		}
		if err := e.vectors.Add(id, vec); err != nil {
			return nil, err
		}
	}

	if err := e.saveLocked(); err != nil {
		return nil, err
	}
	slog.Info("store_repaired",
		slog.Int("orphans_removed", len(report.OrphanVectors)),
		slog.Int("vectors_restored", len(report.MissingVectors)))
	return report, nil
}

// Compact drops vector tombstones, checkpoints the database and saves.
// It returns the number of tombstones reclaimed.
func (e *Engine) Compact(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ragerrors.InternalError("engine is closed", nil)
	}

	reclaimed, err := e.vectors.Compact()
	if err != nil {
		return 0, err
	}
	if err := e.docs.Checkpoint(ctx); err != nil {
		return 0, err
	}
	if err := e.saveLocked(); err != nil {
		return 0, err
	}

	slog.Info("store_compacted", slog.Int("tombstones_reclaimed", reclaimed))
	return reclaimed, nil
}
