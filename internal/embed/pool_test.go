package embed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0)
	}
	return texts
}

func TestPooledEmbedder_EmbedBatch_PreservesOrderAcrossSlices(t *testing.T) {
	// Given: a pool of 4 workers with slices of 3
	inner := newMockEmbedder(4)
	pooled, err := NewPooledEmbedder(inner, 4, 3)
	require.NoError(t, err)
	defer func() { _ = pooled.Close() }()

	// When: embedding 10 texts of increasing length
	texts := numberedTexts(10)
	vecs, err := pooled.EmbedBatch(context.Background(), texts)

	// Then: every vector lines up with its text
	require.NoError(t, err)
	require.Len(t, vecs, 10)
	for i, vec := range vecs {
		assert.Equal(t, float32(i+1), vec[0], "vector %d out of order", i)
	}
	assert.Equal(t, int64(4), inner.batchCalls.Load())
}

func TestPooledEmbedder_SmallBatchGoesStraightThrough(t *testing.T) {
	inner := newMockEmbedder(4)
	pooled, err := NewPooledEmbedder(inner, 2, 8)
	require.NoError(t, err)
	defer func() { _ = pooled.Close() }()

	_, err = pooled.EmbedBatch(context.Background(), numberedTexts(5))

	require.NoError(t, err)
	assert.Equal(t, []int{5}, inner.batchLens)
}

func TestPooledEmbedder_FirstErrorFailsWholeBatch(t *testing.T) {
	inner := newMockEmbedder(4)
	texts := numberedTexts(12)
	inner.failOn = texts[7]
	pooled, err := NewPooledEmbedder(inner, 3, 2)
	require.NoError(t, err)
	defer func() { _ = pooled.Close() }()

	vecs, err := pooled.EmbedBatch(context.Background(), texts)

	require.ErrorIs(t, err, errMockFailure)
	assert.Nil(t, vecs)
}

func TestPooledEmbedder_CancelledContext(t *testing.T) {
	inner := newMockEmbedder(4)
	pooled, err := NewPooledEmbedder(inner, 2, 2)
	require.NoError(t, err)
	defer func() { _ = pooled.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vecs, err := pooled.EmbedBatch(ctx, numberedTexts(6))

	require.Error(t, err)
	assert.Nil(t, vecs)
}

func TestPooledEmbedder_ClampsBatchSize(t *testing.T) {
	pooled, err := NewPooledEmbedder(newMockEmbedder(4), 0, MaxBatchSize*2)
	require.NoError(t, err)
	defer func() { _ = pooled.Close() }()

	assert.Equal(t, MaxBatchSize, pooled.batchSize)
	assert.Equal(t, 1, pooled.pool.Cap())
}
