// Package store provides the persistence layer: the approximate vector index
// (HNSW or brute force over a slot arena), the SQLite document store with
// FTS5 keyword search, an alternate bleve keyword index and the store
// directory lock.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// File names inside a store directory.
const (
	DocumentsFile = "documents.db"
	VectorsFile   = "vectors.gob"
	BleveDir      = "keyword.bleve"
	LockFile      = ".ragstore.lock"

	// hnswSuffix is appended to the vectors file for the native graph export.
	hnswSuffix = ".hnsw"
)

// Metadata is the caller-supplied metadata of a document. Values are JSON
// scalars; encoding/json writes map keys sorted, so serialization is
// deterministic.
type Metadata map[string]any

// Document is an indexed chunk of text. Documents are immutable: updating
// one means deleting it and adding it again.
type Document struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalMetadata encodes metadata for storage. Nil encodes as "{}".
func MarshalMetadata(m Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalMetadata decodes stored metadata. Numbers decode as float64,
// matching what a JSON round trip of caller metadata produces.
func UnmarshalMetadata(s string) (Metadata, error) {
	m := Metadata{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Hit is a vector search result.
type Hit struct {
	ID    string
	Score float64 // cosine similarity
	Slot  uint64
}

// KeywordHit is a keyword search result. Score is the backend's raw value:
// negative bm25() for SQLite FTS5 (lower is better), positive for bleve.
type KeywordHit struct {
	ID    string
	Score float64
}

// KeywordIndex is a full-text index over document content.
type KeywordIndex interface {
	// Index adds or replaces documents.
	Index(ctx context.Context, docs []*Document) error

	// Search returns up to limit hits ordered best first.
	Search(ctx context.Context, query string, limit int) ([]KeywordHit, error)

	// Delete removes documents by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Backend returns the backend name.
	Backend() string

	Close() error
}
