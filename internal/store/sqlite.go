package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// SQLiteDocumentStore keeps documents, their embeddings and an FTS5 index
// over their content in one SQLite database.
type SQLiteDocumentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// SQLiteOptions tunes the document store.
type SQLiteOptions struct {
	// CacheMB is the page cache size (default 64).
	CacheMB int
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	source_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  BLOB,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);

-- id is stored but not searchable
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	id UNINDEXED,
	content,
	tokenize='porter unicode61'
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// validateSQLiteIntegrity checks an existing database before opening it.
// A missing file is valid: it will be created.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteDocumentStore opens or creates the database at path. An empty
// path opens an in-memory database. A file that fails its integrity check
// is left in place and reported as corrupt.
func NewSQLiteDocumentStore(path string, opts SQLiteOptions) (*SQLiteDocumentStore, error) {
	if opts.CacheMB <= 0 {
		opts.CacheMB = 64
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, ragerrors.StorageError("failed to create store directory", err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Error("document_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("document store at %s failed its integrity check", path), validErr).
				WithDetail("path", path).
				WithSuggestion("Restore " + filepath.Base(path) + " from a backup, or move it aside and re-add your documents")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerrors.StorageError("failed to open document store", err)
	}

	// Single connection: one writer, and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN parameters, so pragmas are
	// applied as statements.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ragerrors.StorageError("failed to set pragma", err).WithDetail("pragma", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, ragerrors.StorageError("failed to initialize schema", err)
	}

	return &SQLiteDocumentStore{db: db, path: path}, nil
}

// Path returns the database path, empty for in-memory stores.
func (s *SQLiteDocumentStore) Path() string {
	return s.path
}

func (s *SQLiteDocumentStore) checkOpen() error {
	if s.closed {
		return ragerrors.InternalError("document store is closed", nil)
	}
	return nil
}

// Put inserts or replaces docs and their full-text rows in one transaction.
func (s *SQLiteDocumentStore) Put(ctx context.Context, docs ...*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, source_id, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return ragerrors.StorageError("failed to prepare document statement", err)
	}
	defer func() { _ = docStmt.Close() }()

	// FTS5 virtual tables don't support REPLACE, so delete first.
	ftsDelete, err := tx.PrepareContext(ctx, `DELETE FROM documents_fts WHERE id = ?`)
	if err != nil {
		return ragerrors.StorageError("failed to prepare fts delete", err)
	}
	defer func() { _ = ftsDelete.Close() }()

	ftsInsert, err := tx.PrepareContext(ctx, `INSERT INTO documents_fts (id, content) VALUES (?, ?)`)
	if err != nil {
		return ragerrors.StorageError("failed to prepare fts insert", err)
	}
	defer func() { _ = ftsInsert.Close() }()

	for _, doc := range docs {
		meta, err := MarshalMetadata(doc.Metadata)
		if err != nil {
			return ragerrors.ValidationError(fmt.Sprintf("metadata of %s is not JSON-serializable", doc.ID), err)
		}
		created := doc.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}

		if _, err := docStmt.ExecContext(ctx, doc.ID, doc.SourceID, doc.Content, meta,
			encodeEmbedding(doc.Embedding), created.UnixNano()); err != nil {
			return ragerrors.StorageError(fmt.Sprintf("failed to store document %s", doc.ID), err)
		}
		if _, err := ftsDelete.ExecContext(ctx, doc.ID); err != nil {
			return ragerrors.StorageError(fmt.Sprintf("failed to replace fts row %s", doc.ID), err)
		}
		if _, err := ftsInsert.ExecContext(ctx, doc.ID, doc.Content); err != nil {
			return ragerrors.StorageError(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ragerrors.StorageError("failed to commit documents", err)
	}
	return nil
}

// Get returns the document with id, or a NotFoundError.
func (s *SQLiteDocumentStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, content, metadata, embedding, created_at
		FROM documents WHERE id = ?`, id)

	var (
		doc       Document
		meta      string
		embedding []byte
		created   int64
	)
	err := row.Scan(&doc.ID, &doc.SourceID, &doc.Content, &meta, &embedding, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ragerrors.NotFoundError(id)
	}
	if err != nil {
		return nil, ragerrors.StorageError(fmt.Sprintf("failed to read document %s", id), err)
	}

	doc.Metadata, err = UnmarshalMetadata(meta)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("metadata of %s is corrupt", id), err)
	}
	doc.Embedding = decodeEmbedding(embedding)
	doc.CreatedAt = time.Unix(0, created)
	return &doc, nil
}

// Delete removes documents and their full-text rows. Unknown ids are ignored.
func (s *SQLiteDocumentStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM documents WHERE id IN (%s)", inClause), args...); err != nil {
		return ragerrors.StorageError("failed to delete documents", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM documents_fts WHERE id IN (%s)", inClause), args...); err != nil {
		return ragerrors.StorageError("failed to delete fts rows", err)
	}

	if err := tx.Commit(); err != nil {
		return ragerrors.StorageError("failed to commit delete", err)
	}
	return nil
}

// IDsBySource returns the ids of every chunk of sourceID, oldest first.
func (s *SQLiteDocumentStore) IDsBySource(ctx context.Context, sourceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE source_id = ? ORDER BY created_at, id`, sourceID)
	if err != nil {
		return nil, ragerrors.StorageError("failed to query source", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ragerrors.StorageError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerrors.StorageError("failed to iterate source", err)
	}
	return ids, nil
}

// Count returns the number of stored documents (chunks).
func (s *SQLiteDocumentStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM documents`)
}

// SourceCount returns the number of distinct sources.
func (s *SQLiteDocumentStore) SourceCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(DISTINCT source_id) FROM documents`)
}

func (s *SQLiteDocumentStore) count(ctx context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, ragerrors.StorageError("failed to count documents", err)
	}
	return n, nil
}

// AllEmbeddings streams every document id with its embedding, in insertion
// order. Documents stored without an embedding are skipped.
func (s *SQLiteDocumentStore) AllEmbeddings(ctx context.Context, fn func(id string, vec []float32) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM documents WHERE embedding IS NOT NULL ORDER BY created_at, rowid`)
	if err != nil {
		return ragerrors.StorageError("failed to query embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return ragerrors.StorageError("failed to scan embedding", err)
		}
		if err := fn(id, decodeEmbedding(blob)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return ragerrors.StorageError("failed to iterate embeddings", err)
	}
	return nil
}

// AllIDs returns every document id, sorted.
func (s *SQLiteDocumentStore) AllIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, ragerrors.StorageError("failed to query ids", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ragerrors.StorageError("failed to scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerrors.StorageError("failed to iterate ids", err)
	}
	return ids, nil
}

// KeywordSearch runs an FTS5 query and returns raw bm25() scores, which
// are negative with lower meaning better.
func (s *SQLiteDocumentStore) KeywordSearch(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	match := SanitizeFTSQuery(query)
	if match == "" || limit <= 0 {
		return []KeywordHit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bm25(documents_fts) AS score
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, ragerrors.StorageError("keyword search failed", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []KeywordHit{}
	for rows.Next() {
		var hit KeywordHit
		if err := rows.Scan(&hit.ID, &hit.Score); err != nil {
			return nil, ragerrors.StorageError("failed to scan keyword hit", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerrors.StorageError("failed to iterate keyword hits", err)
	}
	return hits, nil
}

// Checkpoint folds the WAL into the main database file.
func (s *SQLiteDocumentStore) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return ragerrors.StorageError("wal checkpoint failed", err)
	}
	return nil
}

// Close checkpoints and closes the database. It is idempotent.
func (s *SQLiteDocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// encodeEmbedding packs vec as little-endian float32. Nil stays NULL.
func encodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if buf == nil {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
