package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// PooledEmbedder splits large batches into BatchSize slices and embeds the
// slices concurrently on an ants worker pool. Output order matches input
// order; the first failing slice cancels the rest and fails the batch.
type PooledEmbedder struct {
	inner     Embedder
	pool      *ants.Pool
	batchSize int
}

// NewPooledEmbedder wraps inner with a pool of workers goroutines.
func NewPooledEmbedder(inner Embedder, workers, batchSize int) (*PooledEmbedder, error) {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	return &PooledEmbedder{inner: inner, pool: pool, batchSize: batchSize}, nil
}

// Embed passes through to the inner embedder.
func (p *PooledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.inner.Embed(ctx, text)
}

// EmbedBatch embeds texts in concurrent slices.
func (p *PooledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= p.batchSize {
		return p.inner.EmbedBatch(ctx, texts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := p.inner.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			if len(vecs) != end-start {
				fail(fmt.Errorf("provider returned %d embeddings for %d texts", len(vecs), end-start))
				return
			}
			copy(results[start:end], vecs)
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit embedding task: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Debug("pooled_embedding_complete",
		slog.Int("texts", len(texts)),
		slog.Int("batch_size", p.batchSize),
		slog.Int("workers", p.pool.Cap()))
	return results, nil
}

// Dimensions returns the inner embedder's dimension.
func (p *PooledEmbedder) Dimensions() int { return p.inner.Dimensions() }

// ModelName returns the inner embedder's model.
func (p *PooledEmbedder) ModelName() string { return p.inner.ModelName() }

// Available passes through to the inner embedder.
func (p *PooledEmbedder) Available(ctx context.Context) bool { return p.inner.Available(ctx) }

// Close releases the pool and closes the inner embedder.
func (p *PooledEmbedder) Close() error {
	p.pool.Release()
	return p.inner.Close()
}
