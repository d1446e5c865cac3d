package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/topical/internal/storage"
)

// MetadataStore implements storage.MetadataStore using SQLite.
type MetadataStore struct {
	db *sql.DB
}

// Ensure *MetadataStore implements the full interface at compile time.
var _ storage.MetadataStore = (*MetadataStore)(nil)

// NewMetadataStore opens a SQLite metadata store. Pass ":memory:" for an
// ephemeral database (used throughout the tests).
func NewMetadataStore(dsn string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load; WAL
	// mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	// Foreign keys are off by default in SQLite; the cascade contract
	// depends on them.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &MetadataStore{db: db}, nil
}

// RunMigrations applies pending schema migrations from the given directory.
func (s *MetadataStore) RunMigrations(dir string) error {
	mgr, err := storage.NewMigrationManager(s.db, dir, false)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create migration manager: %w", err)
	}

	if err := mgr.Up(); err != nil {
		return fmt.Errorf("sqlite: failed to run migrations: %w", err)
	}

	return nil
}

// GetDB returns the underlying database connection.
func (s *MetadataStore) GetDB() *sql.DB {
	return s.db
}

// Close releases any resources held by the store.
func (s *MetadataStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// mapError converts driver-level errors into the storage sentinels.
// modernc.org/sqlite surfaces constraint failures as string-typed errors,
// so matching on the SQLite error message is the only portable option.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "constraint failed: FOREIGN KEY") {
		return fmt.Errorf("%w: %s", storage.ErrConflict, msg)
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", storage.ErrConflict, msg)
	}
	return storage.MapContextError(err)
}

// nullableString converts an empty string to a NULL-storing sql value.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// touchTime returns the timestamp written into the updated column.
// Unlike the PostgreSQL backend, which refreshes updated via a row
// trigger, the SQLite backend sets it inside the single UPDATE statement —
// still exactly once per mutating statement.
func touchTime() time.Time {
	return time.Now().UTC()
}
