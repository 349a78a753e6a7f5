package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// BleveKeywordIndex is a KeywordIndex on bleve v2 with English analysis
// (lowercasing, stop words, Porter stemming).
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// bleveDocument is the indexed form of a Document.
type bleveDocument struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

// validateBleveIntegrity checks that an existing index directory has a
// parseable index_meta.json. A missing directory is valid.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, bleve.ErrorIndexMetaCorrupt) ||
		strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

func newBleveMapping() *mapping.IndexMappingImpl {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = en.AnalyzerName
	content.Store = false
	content.IncludeTermVectors = false

	source := bleve.NewKeywordFieldMapping()
	source.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("source_id", source)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

// NewBleveKeywordIndex opens or creates the index at path; an empty path
// creates an in-memory index. A corrupt index is cleared and recreated.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	m := newBleveMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, ragerrors.StorageError("failed to create keyword index directory", err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := os.RemoveAll(path); err != nil {
				return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("keyword index corrupted at %s and cannot be removed", path), err)
			}
		}

		idx, err = bleve.Open(path)
		switch {
		case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
			idx, err = bleve.New(path, m)
		case isBleveCorruption(err):
			slog.Warn("keyword_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex, "keyword index corrupted, cannot clear", rmErr)
			}
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, ragerrors.StorageError("failed to open keyword index", err).WithDetail("path", path)
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

// Index adds or replaces docs in one batch.
func (b *BleveKeywordIndex) Index(_ context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ragerrors.InternalError("keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content, SourceID: doc.SourceID}); err != nil {
			return ragerrors.StorageError(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return ragerrors.StorageError("failed to execute keyword batch", err)
	}
	return nil
}

// Search runs a match query on content. Scores are positive; higher is better.
func (b *BleveKeywordIndex) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []KeywordHit{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ragerrors.InternalError("keyword index is closed", nil)
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")
	req := bleve.NewSearchRequest(match)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ragerrors.StorageError("keyword search failed", err)
	}

	hits := make([]KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, KeywordHit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Delete removes ids in one batch.
func (b *BleveKeywordIndex) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ragerrors.InternalError("keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return ragerrors.StorageError("failed to delete from keyword index", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (b *BleveKeywordIndex) Count() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ragerrors.InternalError("keyword index is closed", nil)
	}
	return b.index.DocCount()
}

// Backend returns "bleve".
func (b *BleveKeywordIndex) Backend() string { return KeywordBackendBleve }

// Close closes the index. It is idempotent.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
