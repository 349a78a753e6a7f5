// Package search provides the hybrid retrieval engine. It combines cosine
// similarity from the vector index with keyword relevance from the keyword
// index by a weighted linear fusion.
package search

import (
	"github.com/Aman-CERP/ragstore/internal/chunk"
	"github.com/Aman-CERP/ragstore/internal/embed"
	"github.com/Aman-CERP/ragstore/internal/store"
)

// Search defaults.
const (
	// DefaultK is the number of results returned when Options.K is unset.
	DefaultK = 5

	// DefaultAlpha weights semantic similarity against keyword relevance.
	DefaultAlpha = 0.7

	// candidateMultiplier sets how many candidates each leg fetches per
	// requested result.
	candidateMultiplier = 2

	// keywordEpsilon keeps keyword normalization finite when every raw
	// score is zero.
	keywordEpsilon = 1e-9
)

// Highlight extraction limits.
const (
	maxHighlights      = 3
	maxHighlightLength = 200
)

// Options configures a search query.
type Options struct {
	// K is the maximum number of results (default: EngineConfig.DefaultK).
	K int

	// Filter keeps only documents whose metadata holds every key with a
	// JSON-equal value.
	Filter map[string]any

	// Alpha overrides the engine's semantic weight. 1.0 is pure semantic,
	// 0.0 pure keyword. Nil uses EngineConfig.DefaultAlpha.
	Alpha *float64
}

// Alpha returns a pointer to a, for Options.Alpha.
func Alpha(a float64) *float64 {
	return &a
}

// Result is a single search result.
type Result struct {
	Document *store.Document `json:"document"`

	// Score is alpha*SemanticScore + (1-alpha)*KeywordScore.
	Score float64 `json:"score"`

	// SemanticScore is the cosine similarity, 0 when the vector leg missed.
	SemanticScore float64 `json:"semantic_score"`

	// KeywordScore is the normalized keyword relevance in [0,1].
	KeywordScore float64 `json:"keyword_score"`

	// Highlights holds up to three sentences containing query terms.
	Highlights []string `json:"highlights"`
}

// DocumentInput is one source text for AddDocuments.
type DocumentInput struct {
	// ID, when set, becomes the source id shared by the text's chunks so
	// Delete(ID) removes them. Empty uses the digest of Text.
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stats summarizes an engine's store.
type Stats struct {
	// DocumentCount counts distinct source texts.
	DocumentCount int `json:"document_count"`

	// ChunkCount counts stored chunks.
	ChunkCount int `json:"chunk_count"`

	Dimension      int    `json:"dimension"`
	StoragePath    string `json:"storage_path"`
	VectorCount    int    `json:"vector_count"`
	Tombstones     int    `json:"tombstones"`
	VectorBackend  string `json:"vector_backend"`
	KeywordBackend string `json:"keyword_backend"`
	EmbedderModel  string `json:"embedder_model"`
}

// ConsistencyReport compares document rows against live vector slots.
type ConsistencyReport struct {
	Documents int `json:"documents"`
	Vectors   int `json:"vectors"`

	// MissingVectors are stored documents without a live vector.
	MissingVectors []string `json:"missing_vectors"`

	// OrphanVectors are live vectors without a stored document.
	OrphanVectors []string `json:"orphan_vectors"`
}

// Consistent reports whether the store and the vector index agree.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.MissingVectors) == 0 && len(r.OrphanVectors) == 0
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// StoragePath is the store directory. Empty keeps everything in
	// memory: no files, no lock, nothing persisted.
	StoragePath string

	SQLiteCacheMB int

	Chunking chunk.Options

	// Vector configures the vector index. Dimensions is taken from the
	// embedder.
	Vector store.VectorConfig

	// KeywordBackend is "sqlite" (default) or "bleve".
	KeywordBackend string

	DefaultK     int
	DefaultAlpha float64

	Embeddings embed.Config
}

// DefaultEngineConfig returns an in-memory configuration with the static
// embedder.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Chunking: chunk.DefaultOptions(),
		Vector: store.VectorConfig{
			Backend:        store.BackendAuto,
			MaxElements:    store.DefaultMaxElements,
			M:              store.DefaultM,
			EfConstruction: store.DefaultEfConstruction,
			EfSearch:       store.DefaultEfSearch,
		},
		KeywordBackend: store.KeywordBackendSQLite,
		DefaultK:       DefaultK,
		DefaultAlpha:   DefaultAlpha,
		Embeddings: embed.Config{
			Provider:   embed.ProviderStatic,
			Dimensions: embed.StaticDimensions,
		},
	}
}
