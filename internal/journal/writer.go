// Package journal persists failed document-collection cleanups so they can
// be replayed after the fault clears. Each record is a standalone JSON file
// in the journal directory; consuming a record deletes its file, so a
// record survives process restarts until some replay succeeds.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is one failed cleanup awaiting replay.
type Record struct {
	CollectionKey string    `json:"collection_key"`
	Kind          string    `json:"kind"` // "topic" or "set"
	OwnerID       string    `json:"owner_id"`
	Reason        string    `json:"reason"`
	Attempts      int       `json:"attempts"`
	FailedAt      time.Time `json:"failed_at"`
}

// Writer appends records to a journal directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer that journals to {dataPath}/cleanup/.
func NewWriter(dataPath string) *Writer {
	return &Writer{dir: filepath.Join(dataPath, "cleanup")}
}

// Dir returns the journal directory path.
func (w *Writer) Dir() string {
	return w.dir
}

// Append writes a record file. Safe to call concurrently; the nanosecond
// timestamp in the filename keeps concurrent appends from colliding.
func (w *Writer) Append(rec Record) error {
	if rec.CollectionKey == "" {
		return fmt.Errorf("journal: record has no collection key")
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("journal: mkdir %s: %w", w.dir, err)
	}

	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record: %w", err)
	}

	filename := fmt.Sprintf("%d-%s.cleanup", time.Now().UnixNano(), rec.CollectionKey)
	path := filepath.Join(w.dir, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("journal: write %s: %w", filename, err)
	}

	return nil
}
