package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Provider names accepted by NewEmbedder.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and tunes an embedding provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	BatchSize  int

	// Workers > 1 wraps the provider in a PooledEmbedder.
	Workers int

	// CacheSize > 0 wraps the result in a CachedEmbedder.
	CacheSize int

	Timeout       time.Duration
	OllamaHost    string
	OpenAIBaseURL string
	OpenAIAPIKey  string
}

// NewEmbedder creates the configured provider and layers the pool and
// cache wrappers on top of it. The cache sits outermost so hits never
// occupy a worker.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	base, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var e Embedder = base
	if cfg.Workers > 1 && providerName(cfg.Provider) != ProviderStatic {
		pooled, err := NewPooledEmbedder(base, cfg.Workers, cfg.BatchSize)
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		e = pooled
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}

	slog.Info("embedder_ready",
		slog.String("provider", providerName(cfg.Provider)),
		slog.String("model", e.ModelName()),
		slog.Int("dimensions", e.Dimensions()))
	return e, nil
}

func providerName(p string) string {
	if p == "" {
		return ProviderStatic
	}
	return strings.ToLower(p)
}

func newProvider(ctx context.Context, cfg Config) (Embedder, error) {
	switch providerName(cfg.Provider) {
	case ProviderStatic:
		if cfg.Dimensions < 0 {
			return nil, ragerrors.ConfigurationError(
				fmt.Sprintf("embedding dimensions must be positive, got %d", cfg.Dimensions), nil)
		}
		return NewStaticEmbedder(cfg.Dimensions), nil

	case ProviderOllama:
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})

	case ProviderOpenAI:
		return NewOpenAIEmbedder(ctx, OpenAIConfig{
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})

	default:
		return nil, ragerrors.New(ragerrors.ErrCodeUnknownBackend,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil).
			WithSuggestion("Use one of: static, ollama, openai")
	}
}
