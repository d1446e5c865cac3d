// Package backup creates consistent point-in-time snapshots of the
// SQLite-backed stores and manages their retention. Each snapshot is a
// timestamped directory holding one file per database, produced with
// VACUUM INTO so WAL-mode databases snapshot cleanly while in use.
package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// snapshotTimeFormat names snapshot directories; lexical order is
// chronological order.
const snapshotTimeFormat = "20060102-150405"

// Service creates, verifies, restores, and prunes snapshots under a single
// backup directory.
type Service struct {
	dir       string
	retention RetentionPolicy
	verify    bool
}

// Result describes one completed snapshot.
type Result struct {
	// Dir is the snapshot directory that was created.
	Dir string

	// Files maps each database name to its snapshot size in bytes.
	Files map[string]int64

	// Duration is how long the snapshot took.
	Duration time.Duration
}

// NewService creates a backup service rooted at dir. When verify is true,
// every snapshot file is integrity-checked after it is written.
func NewService(dir string, policy RetentionPolicy, verify bool) *Service {
	policy.normalize()
	return &Service{dir: dir, retention: policy, verify: verify}
}

// Create snapshots every source database into a new timestamped directory.
// sources maps a file name within the snapshot (e.g. "metadata.db") to the
// live database path. A failed source aborts the snapshot and removes the
// partial directory.
func (s *Service) Create(sources map[string]string) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("backup: no source databases given")
	}

	start := time.Now()
	snapDir := filepath.Join(s.dir, start.UTC().Format(snapshotTimeFormat))
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: failed to create snapshot directory: %w", err)
	}

	files := make(map[string]int64, len(sources))
	for name, sourcePath := range sources {
		destPath := filepath.Join(snapDir, name)
		if err := snapshotSQLite(sourcePath, destPath); err != nil {
			os.RemoveAll(snapDir)
			return nil, fmt.Errorf("backup: failed to snapshot %s: %w", name, err)
		}

		if s.verify {
			if err := verifySnapshot(destPath); err != nil {
				os.RemoveAll(snapDir)
				return nil, fmt.Errorf("backup: snapshot of %s failed verification: %w", name, err)
			}
		}

		info, err := os.Stat(destPath)
		if err != nil {
			os.RemoveAll(snapDir)
			return nil, fmt.Errorf("backup: failed to stat snapshot of %s: %w", name, err)
		}
		files[name] = info.Size()
	}

	return &Result{
		Dir:      snapDir,
		Files:    files,
		Duration: time.Since(start),
	}, nil
}

// Restore copies databases out of the given snapshot directory back to
// their live paths. targets maps snapshot file names to destination paths.
// The stores must not be open while restoring.
func (s *Service) Restore(snapshotDir string, targets map[string]string) error {
	for name, targetPath := range targets {
		sourcePath := filepath.Join(snapshotDir, name)

		if err := verifySnapshot(sourcePath); err != nil {
			return fmt.Errorf("backup: snapshot %s failed verification: %w", name, err)
		}

		if err := copyFile(sourcePath, targetPath); err != nil {
			return fmt.Errorf("backup: failed to restore %s: %w", name, err)
		}

		if err := verifySnapshot(targetPath); err != nil {
			return fmt.Errorf("backup: restored %s failed verification: %w", name, err)
		}
	}

	return nil
}

// snapshotSQLite writes a consistent copy of the database at sourcePath to
// destPath. VACUUM INTO reads a single transaction-consistent view, so a
// live WAL-mode database snapshots correctly.
func snapshotSQLite(sourcePath, destPath string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", sourcePath))
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping source database: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("failed to vacuum into snapshot: %w", err)
	}

	return nil
}

// verifySnapshot runs SQLite's integrity check against a snapshot file.
func verifySnapshot(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

func copyFile(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	return dst.Sync()
}
