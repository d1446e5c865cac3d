package journal

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the journal directory and dispatches records to a
// callback. A record file is removed before dispatch, so across multiple
// consumers each record is delivered at most once.
type Watcher struct {
	dir      string
	callback func(Record)
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for {dataPath}/cleanup/.
func NewWatcher(dataPath string, callback func(Record)) *Watcher {
	return &Watcher{
		dir:      filepath.Join(dataPath, "cleanup"),
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It drains any records left over from a previous
// run first, then watches for new ones. Call Stop() to clean up.
func (jw *Watcher) Start() error {
	if err := os.MkdirAll(jw.dir, 0o700); err != nil {
		return err
	}

	jw.drainExisting()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(jw.dir); err != nil {
		_ = w.Close()
		return err
	}
	jw.watcher = w

	go jw.loop()
	log.Printf("journal: watching %s for cleanup records", jw.dir)
	return nil
}

// Stop shuts down the watcher.
func (jw *Watcher) Stop() {
	if jw.watcher != nil {
		_ = jw.watcher.Close()
	}
	<-jw.done
}

func (jw *Watcher) loop() {
	defer close(jw.done)
	for {
		select {
		case evt, ok := <-jw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && strings.HasSuffix(evt.Name, ".cleanup") {
				jw.processFile(evt.Name)
			}
		case err, ok := <-jw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("journal: watcher error: %v", err)
		}
	}
}

func (jw *Watcher) drainExisting() {
	entries, err := os.ReadDir(jw.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cleanup") {
			jw.processFile(filepath.Join(jw.dir, entry.Name()))
		}
	}
}

func (jw *Watcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // record already consumed by another process
	}
	_ = os.Remove(path)

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("journal: invalid record file %s: %v", filepath.Base(path), err)
		return
	}

	if rec.CollectionKey != "" && jw.callback != nil {
		jw.callback(rec)
	}
}
