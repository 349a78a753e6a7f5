package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// OpenAI-compatible defaults.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string // "none" is sent for local servers that ignore auth
	Model      string
	Dimensions int // 0 probes the endpoint
	BatchSize  int
	Retry      ragerrors.RetryConfig
}

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint
// (OpenAI, LM Studio, vLLM, llama.cpp server) through langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	model    string
	dims     int
	retry    ragerrors.RetryConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds the langchaingo client and resolves the dimension.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "none"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = ragerrors.DefaultRetryConfig()
	}

	client, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, ragerrors.ConfigurationError("failed to create openai client", err)
	}

	lc, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, ragerrors.ConfigurationError("failed to create openai embedder", err)
	}

	e := &OpenAIEmbedder{
		embedder: lc,
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		retry:    cfg.Retry,
		logger:   slog.Default().With("component", "openai-embedder"),
	}

	if e.dims == 0 {
		vec, err := e.embedQuery(ctx, "dimension probe")
		if err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeProviderUnavailable,
				fmt.Sprintf("embedding endpoint %s is not usable", cfg.BaseURL), err)
		}
		e.dims = len(vec)
	}
	return e, nil
}

func (e *OpenAIEmbedder) embedQuery(ctx context.Context, text string) ([]float32, error) {
	return ragerrors.RetryWithResult(ctx, e.retry, func() ([]float32, error) {
		return e.embedder.EmbedQuery(ctx, text)
	})
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts; blank texts become zero vectors.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	results := make([][]float32, len(texts))
	var (
		idx     []int
		pending []string
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}
	if len(pending) == 0 {
		return results, nil
	}

	e.logger.Debug("generating embeddings", "count", len(pending))
	vecs, err := ragerrors.RetryWithResult(ctx, e.retry, func() ([][]float32, error) {
		return e.embedder.EmbedDocuments(ctx, pending)
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(pending), "err", err)
		return nil, ragerrors.ProviderError("openai embedding request failed", err)
	}
	if len(vecs) != len(pending) {
		return nil, ragerrors.ProviderError(
			fmt.Sprintf("endpoint returned %d embeddings for %d texts", len(vecs), len(pending)), nil)
	}

	for j, vec := range vecs {
		if len(vec) != e.dims {
			return nil, ragerrors.DimensionError(e.dims, len(vec))
		}
		results[idx[j]] = normalizeVector(vec)
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available reports whether the embedder is open.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
