package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoMigration indicates no migration has been applied yet.
var ErrNoMigration = errors.New("no migration")

// MigrationManager applies plain-SQL schema migrations to a metadata store.
// It reads NNN_name.up.sql / NNN_name.down.sql files from a directory and
// applies them in version order, tracking the current version in a
// schema_migrations table. Both backends use it: SQLite through
// modernc.org/sqlite (CGO-free) and PostgreSQL through lib/pq.
type MigrationManager struct {
	db       *sql.DB
	dir      string
	postgres bool
}

// migration is a single up/down file pair.
type migration struct {
	version  uint
	name     string
	upFile   string
	downFile string
}

// NewMigrationManager creates a manager for the given database and
// migrations directory. Set postgres to true when the underlying driver
// uses $N placeholders instead of ?.
func NewMigrationManager(db *sql.DB, dir string, postgres bool) (*MigrationManager, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("migrations: directory does not exist: %s", dir)
	}

	mgr := &MigrationManager{db: db, dir: dir, postgres: postgres}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return nil, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}

	return mgr, nil
}

// placeholder returns the positional placeholder for the first bind argument.
func (mgr *MigrationManager) placeholder() string {
	if mgr.postgres {
		return "$1"
	}
	return "?"
}

// Up applies all pending migrations in ascending version order.
// Returns nil when already up to date.
func (mgr *MigrationManager) Up() error {
	migrations, err := mgr.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	current, err := mgr.Version()
	if err != nil && !errors.Is(err, ErrNoMigration) {
		return fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		ddl, err := os.ReadFile(m.upFile)
		if err != nil {
			return fmt.Errorf("migrations: failed to read %s: %w", m.upFile, err)
		}

		if _, err := mgr.db.Exec(string(ddl)); err != nil {
			return fmt.Errorf("migrations: failed to apply version %d (%s): %w", m.version, m.name, err)
		}

		record := "INSERT INTO schema_migrations (version) VALUES (" + mgr.placeholder() + ")"
		if _, err := mgr.db.Exec(record, m.version); err != nil {
			return fmt.Errorf("migrations: failed to record version %d: %w", m.version, err)
		}
	}

	return nil
}

// Down rolls back all applied migrations in descending version order.
func (mgr *MigrationManager) Down() error {
	migrations, err := mgr.loadMigrations()
	if err != nil {
		return fmt.Errorf("migrations: failed to load migration files: %w", err)
	}

	current, err := mgr.Version()
	if errors.Is(err, ErrNoMigration) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrations: failed to get current version: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version > migrations[j].version
	})

	for _, m := range migrations {
		if m.version > current || m.downFile == "" {
			continue
		}

		ddl, err := os.ReadFile(m.downFile)
		if err != nil {
			return fmt.Errorf("migrations: failed to read %s: %w", m.downFile, err)
		}

		if _, err := mgr.db.Exec(string(ddl)); err != nil {
			return fmt.Errorf("migrations: failed to roll back version %d (%s): %w", m.version, m.name, err)
		}

		remove := "DELETE FROM schema_migrations WHERE version = " + mgr.placeholder()
		if _, err := mgr.db.Exec(remove, m.version); err != nil {
			return fmt.Errorf("migrations: failed to remove version %d: %w", m.version, err)
		}
	}

	return nil
}

// Version returns the highest applied migration version, or ErrNoMigration
// when none has been applied.
func (mgr *MigrationManager) Version() (uint, error) {
	var version uint
	err := mgr.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}

	if version == 0 {
		return 0, ErrNoMigration
	}

	return version, nil
}

// loadMigrations reads migration files from the directory, paired by
// version. Files must be named NNN_name.up.sql / NNN_name.down.sql.
func (mgr *MigrationManager) loadMigrations() ([]migration, error) {
	entries, err := os.ReadDir(mgr.dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to read directory: %w", err)
	}

	byVersion := make(map[uint]*migration)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		name := entry.Name()
		idx := strings.Index(name, "_")
		if idx < 0 {
			continue
		}

		v, err := strconv.ParseUint(name[:idx], 10, 32)
		if err != nil {
			continue // not a numbered migration file
		}

		m, ok := byVersion[uint(v)]
		if !ok {
			m = &migration{version: uint(v)}
			byVersion[uint(v)] = m
		}

		rest := name[idx+1:]
		full := filepath.Join(mgr.dir, name)
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.name = strings.TrimSuffix(rest, ".up.sql")
			m.upFile = full
		case strings.HasSuffix(rest, ".down.sql"):
			m.downFile = full
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.upFile == "" {
			continue
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations, nil
}
