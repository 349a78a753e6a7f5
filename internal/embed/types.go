package embed

import (
	"context"
	"errors"
	"math"
	"time"
)

// Embedding defaults.
const (
	// DefaultBatchSize is the number of texts sent per provider request.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request to bound memory.
	MaxBatchSize = 256

	// DefaultTimeout bounds one provider request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget of the HTTP providers.
	DefaultMaxRetries = 3

	// StaticDimensions is the default dimension of the static embedder.
	StaticDimensions = 256
)

// ErrClosed is returned by embedders used after Close.
var ErrClosed = errors.New("embedder is closed")

// Embedder turns text into fixed-length vectors.
// Dimensions is fixed for the lifetime of the embedder and every returned
// vector has exactly that length.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
