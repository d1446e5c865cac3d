// Package docstore implements the schemaless document store on SQLite.
//
// Each collection is a dedicated table whose name is the collection key
// derived from a metadata primary key (see storage.CollectionKey). A small
// registry table tracks which collections exist so lookups and the
// reconciler's orphan scan never have to guess from sqlite_master.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// collectionKeyPattern is the shape every collection key must have. Keys
// produced by storage.CollectionKey always match; anything else is caller
// error and is rejected before it can reach a CREATE TABLE statement.
var collectionKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store implements storage.DocumentStore using SQLite.
type Store struct {
	db *sql.DB
}

// Ensure *Store implements the interface at compile time.
var _ storage.DocumentStore = (*Store)(nil)

// New opens a document store. Pass ":memory:" for an ephemeral store.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: failed to open database: %w", err)
	}

	// Single writer connection, WAL for concurrent readers — same
	// concurrency posture as the SQLite metadata backend.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			key TEXT PRIMARY KEY,
			created TIMESTAMP NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: failed to create registry: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// validateKey rejects keys that did not come from storage.CollectionKey.
func validateKey(key string) error {
	if !collectionKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: invalid collection key %q", storage.ErrInvalidInput, key)
	}
	return nil
}

// quoteIdent wraps a validated collection key for use as a table name.
func quoteIdent(key string) string {
	return `"` + key + `"`
}

// collectionExists reports whether the collection is registered.
func (s *Store) collectionExists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("docstore: failed to check collection %q: %w", key, storage.MapContextError(err))
	}
	return n > 0, nil
}

// ensureCollection creates the collection table and registers it. Safe to
// call repeatedly.
func (s *Store) ensureCollection(ctx context.Context, key string) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS ` + quoteIdent(key) + ` (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created TIMESTAMP NOT NULL,
			updated TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("docstore: failed to create collection %q: %w", key, storage.MapContextError(err))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (key, created) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("docstore: failed to register collection %q: %w", key, storage.MapContextError(err))
	}

	return nil
}

// PutDocument upserts a document, creating the collection on first write.
// The body is stored verbatim as JSON with no validation.
func (s *Store) PutDocument(ctx context.Context, collectionKey, docID string, body map[string]interface{}) error {
	if err := validateKey(collectionKey); err != nil {
		return err
	}
	if docID == "" {
		return fmt.Errorf("%w: document id is required", storage.ErrInvalidInput)
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("docstore: failed to marshal body: %w", err)
	}

	if err := s.ensureCollection(ctx, collectionKey); err != nil {
		return err
	}

	query := `
		INSERT INTO ` + quoteIdent(collectionKey) + ` (id, body, created)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			updated = ?
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, docID, string(bodyJSON), now, now); err != nil {
		return fmt.Errorf("docstore: failed to put document %q/%q: %w", collectionKey, docID, storage.MapContextError(err))
	}

	return nil
}

// GetDocument retrieves a document. A missing collection and a missing
// document both surface as ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, collectionKey, docID string) (*types.Document, error) {
	if err := validateKey(collectionKey); err != nil {
		return nil, err
	}
	if docID == "" {
		return nil, fmt.Errorf("%w: document id is required", storage.ErrInvalidInput)
	}

	exists, err := s.collectionExists(ctx, collectionKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	query := `SELECT id, body, created, updated FROM ` + quoteIdent(collectionKey) + ` WHERE id = ?`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, docID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: failed to get document %q/%q: %w", collectionKey, docID, storage.MapContextError(err))
	}

	return doc, nil
}

// ListDocuments retrieves a page of documents ordered by id. An absent
// collection yields an empty page rather than an error, since collections
// come into existence lazily on first write.
func (s *Store) ListDocuments(ctx context.Context, collectionKey string, opts storage.ListOptions) (*storage.PaginatedResult[types.Document], error) {
	if err := validateKey(collectionKey); err != nil {
		return nil, err
	}
	opts.Normalize()

	exists, err := s.collectionExists(ctx, collectionKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &storage.PaginatedResult[types.Document]{
			Items:    []types.Document{},
			Page:     opts.Page,
			PageSize: opts.Limit,
		}, nil
	}

	query := `
		SELECT id, body, created, updated FROM ` + quoteIdent(collectionKey) + `
		ORDER BY id LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("docstore: failed to list documents in %q: %w", collectionKey, storage.MapContextError(err))
	}
	defer func() { _ = rows.Close() }()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore: failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: rows error: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM ` + quoteIdent(collectionKey)
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("docstore: failed to count documents in %q: %w", collectionKey, storage.MapContextError(err))
	}

	return &storage.PaginatedResult[types.Document]{
		Items:    docs,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(docs) < total,
	}, nil
}

// DeleteDocument removes a single document.
func (s *Store) DeleteDocument(ctx context.Context, collectionKey, docID string) error {
	if err := validateKey(collectionKey); err != nil {
		return err
	}
	if docID == "" {
		return fmt.Errorf("%w: document id is required", storage.ErrInvalidInput)
	}

	exists, err := s.collectionExists(ctx, collectionKey)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}

	query := `DELETE FROM ` + quoteIdent(collectionKey) + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, docID)
	if err != nil {
		return fmt.Errorf("docstore: failed to delete document %q/%q: %w", collectionKey, docID, storage.MapContextError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteCollection drops a collection and all its documents. Idempotent:
// dropping an absent collection is a silent no-op, which is what the
// lifecycle synchronizer's retries depend on.
func (s *Store) DeleteCollection(ctx context.Context, collectionKey string) error {
	if err := validateKey(collectionKey); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(collectionKey)); err != nil {
		return fmt.Errorf("docstore: failed to drop collection %q: %w", collectionKey, storage.MapContextError(err))
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE key = ?`, collectionKey); err != nil {
		return fmt.Errorf("docstore: failed to unregister collection %q: %w", collectionKey, storage.MapContextError(err))
	}

	return nil
}

// ListCollections returns every registered collection key, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM collections ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("docstore: failed to list collections: %w", storage.MapContextError(err))
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("docstore: failed to scan collection key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: rows error: %w", err)
	}

	return keys, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDocument scans a single (id, body, created, updated) row.
func scanDocument(row rowScanner) (*types.Document, error) {
	var (
		doc      types.Document
		bodyJSON string
		updated  sql.NullTime
	)

	err := row.Scan(&doc.ID, &bodyJSON, &doc.Created, &updated)
	if err != nil {
		return nil, err
	}

	if bodyJSON != "" && bodyJSON != "null" {
		if err := json.Unmarshal([]byte(bodyJSON), &doc.Body); err != nil {
			return nil, fmt.Errorf("unmarshal body: %w", err)
		}
	}
	if updated.Valid {
		t := updated.Time
		doc.Updated = &t
	}

	return &doc, nil
}
