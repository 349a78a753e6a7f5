package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	// ollamaMaxInputChars truncates over-long inputs before sending; the
	// server rejects requests beyond the model context.
	ollamaMaxInputChars = 8192
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int // 0 probes the model with a test embedding
	BatchSize  int
	Timeout    time.Duration
	Retry      ragerrors.RetryConfig

	// SkipProbe skips the dimension probe; Dimensions must then be set.
	SkipProbe bool
}

// DefaultOllamaConfig returns defaults for a local Ollama server.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      DefaultOllamaHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Retry:     ragerrors.DefaultRetryConfig(),
	}
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings through Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates the embedder and, unless SkipProbe is set,
// discovers the dimension with a test request.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	defaults := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = defaults.Retry
	}
	cfg.Retry.ShouldRetry = ragerrors.IsRetryable

	// No client-level timeout: each attempt gets its own context deadline.
	e := &OllamaEmbedder{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}},
		config: cfg,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipProbe && e.dims == 0 {
		vecs, err := e.embedWithRetry(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeProviderUnavailable,
				fmt.Sprintf("ollama at %s is not usable with model %s", cfg.Host, cfg.Model), err).
				WithSuggestion("Start Ollama and run `ollama pull " + cfg.Model + "`, or set embeddings.provider: static")
		}
		e.dims = len(vecs[0])
	}
	if e.dims == 0 {
		return nil, ragerrors.ConfigurationError("ollama embedder needs embeddings.dimensions when the probe is skipped", nil)
	}

	slog.Debug("ollama_embedder_ready",
		slog.String("host", cfg.Host),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", e.dims))
	return e, nil
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize requests. Blank texts map to zero
// vectors without a round trip.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
		pending = append(pending, truncateRunes(text, ollamaMaxInputChars))
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(pending))
		vecs, err := e.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			if len(vec) != e.dims {
				return nil, ragerrors.DimensionError(e.dims, len(vec))
			}
			results[idx[start+j]] = vec
		}
	}
	return results, nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	attempt := 0
	return ragerrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		vecs, err := e.doEmbed(attemptCtx, texts)
		if err != nil {
			slog.Debug("embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Int("texts_count", len(texts)),
				slog.String("error", err.Error()))
		}
		return vecs, err
	})
}

// doEmbed performs one /api/embed request. Transport failures, timeouts
// and 5xx responses are retryable; everything else is not.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		code := ragerrors.ErrCodeProviderUnavailable
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			code = ragerrors.ErrCodeProviderTimeout
		}
		return nil, ragerrors.New(code, "ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := ragerrors.ErrCodeEmbeddingFailed
		if resp.StatusCode >= 500 {
			code = ragerrors.ErrCodeProviderUnavailable
		}
		return nil, ragerrors.New(code,
			fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ragerrors.ProviderError("failed to decode ollama response", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, ragerrors.ProviderError(
			fmt.Sprintf("ollama returned %d embeddings for %d texts", len(parsed.Embeddings), len(texts)), nil)
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = normalizeVector(vec)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the server lists the configured model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	want := strings.Split(strings.ToLower(e.config.Model), ":")[0]
	for _, m := range tags.Models {
		if strings.Split(strings.ToLower(m.Name), ":")[0] == want {
			return true
		}
	}
	return false
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
