package search

import (
	"github.com/Aman-CERP/ragstore/internal/chunk"
	"github.com/Aman-CERP/ragstore/internal/config"
	"github.com/Aman-CERP/ragstore/internal/embed"
	"github.com/Aman-CERP/ragstore/internal/store"
)

// EngineConfigFromConfig maps the user configuration onto an EngineConfig.
func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		StoragePath:   cfg.Storage.Path,
		SQLiteCacheMB: cfg.Storage.SQLiteCacheMB,
		Chunking: chunk.Options{
			Size:       cfg.Chunking.Size,
			Overlap:    cfg.Chunking.Overlap,
			Separators: cfg.Chunking.Separators,
			IDScheme:   chunk.IDScheme(cfg.Chunking.IDScheme),
		},
		Vector: store.VectorConfig{
			Backend:        cfg.Index.Backend,
			MaxElements:    cfg.Index.MaxElements,
			M:              cfg.Index.M,
			EfConstruction: cfg.Index.EfConstruction,
			EfSearch:       cfg.Index.EfSearch,
		},
		KeywordBackend: cfg.Search.KeywordBackend,
		DefaultK:       cfg.Search.DefaultK,
		DefaultAlpha:   cfg.Search.HybridAlpha,
		Embeddings: embed.Config{
			Provider:      cfg.Embeddings.Provider,
			Model:         cfg.Embeddings.Model,
			Dimensions:    cfg.Embeddings.Dimensions,
			BatchSize:     cfg.Embeddings.BatchSize,
			Workers:       cfg.Embeddings.Workers,
			CacheSize:     cfg.Embeddings.CacheSize,
			Timeout:       cfg.Embeddings.Timeout,
			OllamaHost:    cfg.Embeddings.OllamaHost,
			OpenAIBaseURL: cfg.Embeddings.OpenAIBaseURL,
			OpenAIAPIKey:  cfg.Embeddings.OpenAIAPIKey,
		},
	}
}
