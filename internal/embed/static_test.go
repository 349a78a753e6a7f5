package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Basic embedding
// ============================================================================

func TestStaticEmbedder_Embed_ReturnsCorrectDimensions(t *testing.T) {
	// Given: static embedder with default dimensions
	embedder := NewStaticEmbedder(0)
	defer func() { _ = embedder.Close() }()

	// When: I embed a sentence
	embedding, err := embedder.Embed(context.Background(), "The quick brown fox")

	// Then: a StaticDimensions vector is returned
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
	assert.Equal(t, StaticDimensions, embedder.Dimensions())
}

func TestStaticEmbedder_Embed_CustomDimensions(t *testing.T) {
	embedder := NewStaticEmbedder(64)

	embedding, err := embedder.Embed(context.Background(), "hello world")

	require.NoError(t, err)
	assert.Len(t, embedding, 64)
	assert.Equal(t, "static-hash-64", embedder.ModelName())
}

func TestStaticEmbedder_Embed_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder(0)

	embedding, err := embedder.Embed(context.Background(), "The lazy dog sleeps.")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001, "vector should be normalized to unit length")
}

func TestStaticEmbedder_Embed_BlankTextIsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder(32)

	embedding, err := embedder.Embed(context.Background(), "   \n ")

	require.NoError(t, err)
	assert.Len(t, embedding, 32)
	assert.Zero(t, vectorMagnitude(embedding))
}

// ============================================================================
// Determinism and similarity
// ============================================================================

func TestStaticEmbedder_Embed_DeterministicAcrossInstances(t *testing.T) {
	// Given: two separate embedder instances
	embedder1 := NewStaticEmbedder(0)
	embedder2 := NewStaticEmbedder(0)
	text := "retrieval engines fuse keyword and vector scores"

	// When: I embed same text with different instances
	emb1, err1 := embedder1.Embed(context.Background(), text)
	emb2, err2 := embedder2.Embed(context.Background(), text)

	// Then: identical vectors are returned
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2)
}

func TestStaticEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	embedder := NewStaticEmbedder(0)
	ctx := context.Background()

	query, _ := embedder.Embed(ctx, "quick brown fox")
	near, _ := embedder.Embed(ctx, "The quick brown fox jumps")
	far, _ := embedder.Embed(ctx, "database migration rollback")

	assert.Greater(t, cosineSimilarity(query, near), cosineSimilarity(query, far))
}

func TestStaticEmbedder_StopWordsOnlyStillProducesTrigrams(t *testing.T) {
	embedder := NewStaticEmbedder(0)

	embedding, err := embedder.Embed(context.Background(), "the and of")

	require.NoError(t, err)
	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001)
}

// ============================================================================
// Batch and lifecycle
// ============================================================================

func TestStaticEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	embedder := NewStaticEmbedder(0)
	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}

	batch, err := embedder.EmbedBatch(ctx, texts)

	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, _ := embedder.Embed(ctx, text)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_Close_RejectsFurtherCalls(t *testing.T) {
	embedder := NewStaticEmbedder(0)
	require.NoError(t, embedder.Close())

	_, err := embedder.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, embedder.Available(context.Background()))
}

func TestStaticEmbedder_CancelledContext(t *testing.T) {
	embedder := NewStaticEmbedder(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := embedder.Embed(ctx, "text")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"jumpsThe", []string{"jumps", "The"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"lower", []string{"lower"}},
		{"getUserByID", []string{"get", "User", "By", "ID"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCamelCase(tt.in))
		})
	}
}
