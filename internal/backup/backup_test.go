package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// newSourceDB creates a SQLite file with one table and a known row.
func newSourceDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open source db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE samples (id TEXT PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec("INSERT INTO samples VALUES ('s1', 'original')"); err != nil {
		t.Fatalf("failed to insert row: %v", err)
	}
}

func countRows(t *testing.T, path string) int {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&n); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestCreateSnapshotsAllSources(t *testing.T) {
	dataDir := t.TempDir()
	metaPath := filepath.Join(dataDir, "metadata.db")
	docsPath := filepath.Join(dataDir, "documents.db")
	newSourceDB(t, metaPath)
	newSourceDB(t, docsPath)

	svc := NewService(filepath.Join(dataDir, "backups"), RetentionPolicy{}, true)
	result, err := svc.Create(map[string]string{
		"metadata.db":  metaPath,
		"documents.db": docsPath,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(result.Files) != 2 {
		t.Errorf("expected 2 snapshot files, got %d", len(result.Files))
	}
	for name, size := range result.Files {
		if size <= 0 {
			t.Errorf("snapshot %s has size %d", name, size)
		}
		if _, err := os.Stat(filepath.Join(result.Dir, name)); err != nil {
			t.Errorf("snapshot file %s missing: %v", name, err)
		}
	}
}

func TestCreateFailsOnMissingSource(t *testing.T) {
	dataDir := t.TempDir()
	svc := NewService(filepath.Join(dataDir, "backups"), RetentionPolicy{}, true)

	_, err := svc.Create(map[string]string{
		"metadata.db": filepath.Join(dataDir, "does-not-exist.db"),
	})
	if err == nil {
		t.Fatal("expected error for missing source database")
	}

	// The partial snapshot directory must not survive.
	snapshots, err := svc.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("expected no snapshots after failed create, got %d", len(snapshots))
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	metaPath := filepath.Join(dataDir, "metadata.db")
	newSourceDB(t, metaPath)

	svc := NewService(filepath.Join(dataDir, "backups"), RetentionPolicy{}, true)
	result, err := svc.Create(map[string]string{"metadata.db": metaPath})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Wreck the live database, then restore.
	if err := os.WriteFile(metaPath, []byte("not a database"), 0o644); err != nil {
		t.Fatalf("failed to overwrite db: %v", err)
	}

	if err := svc.Restore(result.Dir, map[string]string{"metadata.db": metaPath}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if n := countRows(t, metaPath); n != 1 {
		t.Errorf("expected 1 row after restore, got %d", n)
	}
}

func TestListNewestFirst(t *testing.T) {
	backupDir := t.TempDir()
	svc := NewService(backupDir, RetentionPolicy{}, false)

	for _, name := range []string{"20250101-000000", "20250301-000000", "20250201-000000"} {
		if err := os.MkdirAll(filepath.Join(backupDir, name), 0o755); err != nil {
			t.Fatalf("failed to create snapshot dir: %v", err)
		}
	}
	// Non-snapshot entries are ignored.
	if err := os.MkdirAll(filepath.Join(backupDir, "scratch"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	snapshots, err := svc.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}
	if !snapshots[0].Timestamp.After(snapshots[1].Timestamp) ||
		!snapshots[1].Timestamp.After(snapshots[2].Timestamp) {
		t.Error("snapshots not ordered newest first")
	}
}

func TestPruneKeepsTierCaps(t *testing.T) {
	backupDir := t.TempDir()
	svc := NewService(backupDir, RetentionPolicy{Hourly: 2, Daily: 1, Weekly: 1, Monthly: 1}, false)

	now := time.Now().UTC()
	ages := []time.Duration{
		1 * time.Hour, // hourly, kept
		2 * time.Hour, // hourly, kept
		3 * time.Hour, // hourly, pruned (cap 2)
		2 * 24 * time.Hour,   // daily, kept
		3 * 24 * time.Hour,   // daily, pruned (cap 1)
		400 * 24 * time.Hour, // over a year, always pruned
	}
	for _, age := range ages {
		name := now.Add(-age).Format(snapshotTimeFormat)
		if err := os.MkdirAll(filepath.Join(backupDir, name), 0o755); err != nil {
			t.Fatalf("failed to create snapshot dir: %v", err)
		}
	}

	removed, err := svc.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(removed) != 3 {
		t.Errorf("expected 3 snapshots pruned, got %d (%v)", len(removed), removed)
	}

	remaining, err := svc.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 3 {
		t.Errorf("expected 3 snapshots remaining, got %d", len(remaining))
	}
}

func TestPruneEmptyDirIsNoop(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "backups"), RetentionPolicy{}, false)

	removed, err := svc.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("expected nothing pruned, got %v", removed)
	}
}
