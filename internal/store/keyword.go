package store

import (
	"context"
	"fmt"
	"path/filepath"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Keyword index backends.
const (
	// KeywordBackendSQLite scores with the document store's FTS5 table (default).
	KeywordBackendSQLite = "sqlite"

	// KeywordBackendBleve scores with a separate bleve index.
	KeywordBackendBleve = "bleve"
)

// NewKeywordIndex creates the keyword index for backend. The SQLite backend
// reuses docs; bleve opens <dir>/keyword.bleve, or an in-memory index when
// dir is empty.
func NewKeywordIndex(backend, dir string, docs *SQLiteDocumentStore) (KeywordIndex, error) {
	switch backend {
	case KeywordBackendSQLite, "":
		return NewSQLiteKeywordIndex(docs), nil

	case KeywordBackendBleve:
		path := ""
		if dir != "" {
			path = filepath.Join(dir, BleveDir)
		}
		idx, err := NewBleveKeywordIndex(path)
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, ragerrors.New(ragerrors.ErrCodeUnknownBackend,
			fmt.Sprintf("unknown keyword backend: %s (valid options: sqlite, bleve)", backend), nil)
	}
}

// SQLiteKeywordIndex adapts the document store's FTS5 table to
// KeywordIndex. SQLiteDocumentStore.Put and Delete maintain the FTS rows
// in the same transaction as the documents, so Index and Delete here have
// nothing left to do.
type SQLiteKeywordIndex struct {
	docs *SQLiteDocumentStore
}

var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

// NewSQLiteKeywordIndex wraps docs.
func NewSQLiteKeywordIndex(docs *SQLiteDocumentStore) *SQLiteKeywordIndex {
	return &SQLiteKeywordIndex{docs: docs}
}

// Index is a no-op; Put already indexed the content.
func (s *SQLiteKeywordIndex) Index(context.Context, []*Document) error { return nil }

// Delete is a no-op; the document store removed the rows.
func (s *SQLiteKeywordIndex) Delete(context.Context, []string) error { return nil }

// Search delegates to the FTS5 table.
func (s *SQLiteKeywordIndex) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	return s.docs.KeywordSearch(ctx, query, limit)
}

// Backend returns "sqlite".
func (s *SQLiteKeywordIndex) Backend() string { return KeywordBackendSQLite }

// Close is a no-op; the document store owns the database.
func (s *SQLiteKeywordIndex) Close() error { return nil }
