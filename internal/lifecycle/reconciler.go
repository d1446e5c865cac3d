package lifecycle

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/metrics"
	"github.com/scrypster/topical/internal/storage"
)

// Reconciler repairs divergence between the metadata and document stores.
// It replays journaled cleanup failures as they land, and periodically
// scans the document store for orphaned collections — collections whose
// owning topic or set no longer exists, including ones recreated by a
// write racing a delete.
type Reconciler struct {
	sync     *Synchronizer
	meta     storage.MetadataStore
	docs     storage.DocumentStore
	dataPath string
	interval time.Duration
	limiter  *rate.Limiter
}

// ReconcilerOptions tunes the reconciler.
type ReconcilerOptions struct {
	// Interval between orphan scans. Defaults to 5 minutes.
	Interval time.Duration
	// ScanRate caps store operations per second during a scan so
	// reconciliation does not crowd out foreground traffic. Defaults to 50.
	ScanRate float64
}

// NewReconciler creates a reconciler sharing the synchronizer's stores and
// journal directory.
func NewReconciler(sync *Synchronizer, dataPath string, opts ReconcilerOptions) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.ScanRate <= 0 {
		opts.ScanRate = 50
	}

	return &Reconciler{
		sync:     sync,
		meta:     sync.meta,
		docs:     sync.docs,
		dataPath: dataPath,
		interval: opts.Interval,
		limiter:  rate.NewLimiter(rate.Limit(opts.ScanRate), 1),
	}
}

// Run blocks until ctx is cancelled. It starts the journal watcher, runs
// one scan immediately, then scans on every interval tick.
func (r *Reconciler) Run(ctx context.Context) error {
	watcher := journal.NewWatcher(r.dataPath, func(rec journal.Record) {
		if err := r.sync.ReplayRecord(ctx, rec); err != nil {
			log.Printf("reconciler: %v", err)
		}
	})
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	if err := r.ScanOnce(ctx); err != nil {
		log.Printf("reconciler: scan failed: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.ScanOnce(ctx); err != nil {
				log.Printf("reconciler: scan failed: %v", err)
			}
		}
	}
}

// ScanOnce performs a single orphan scan: every registered collection whose
// key carries a known kind prefix but matches no live topic or set is
// dropped. Collections without a known prefix are left alone.
func (r *Reconciler) ScanOnce(ctx context.Context) error {
	r.updatePendingGauge()

	live, err := r.liveKeys(ctx)
	if err != nil {
		return err
	}

	keys, err := r.docs.ListCollections(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, storage.TopicCollectionPrefix) &&
			!strings.HasPrefix(key, storage.SetCollectionPrefix) {
			continue
		}
		if live[key] {
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		log.Printf("reconciler: dropping orphaned collection %s", key)
		if err := r.docs.DeleteCollection(ctx, key); err != nil {
			log.Printf("reconciler: failed to drop %s: %v", key, err)
			continue
		}
		metrics.OrphansReclaimed.Inc()
	}

	return nil
}

// liveKeys derives the collection key of every topic and set currently in
// the metadata store.
func (r *Reconciler) liveKeys(ctx context.Context) (map[string]bool, error) {
	live := make(map[string]bool)

	opts := storage.ListOptions{Page: 1, Limit: 250}
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := r.meta.ListTopics(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, topic := range page.Items {
			live[storage.TopicCollectionKey(topic.ID, topic.Name)] = true
		}
		if !page.HasMore {
			break
		}
		opts.Page++
	}

	opts = storage.ListOptions{Page: 1, Limit: 250}
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := r.meta.ListSets(ctx, "", opts)
		if err != nil {
			return nil, err
		}
		for _, set := range page.Items {
			live[storage.SetCollectionKey(set.ID, set.Name)] = true
		}
		if !page.HasMore {
			break
		}
		opts.Page++
	}

	return live, nil
}

// updatePendingGauge counts journaled records still awaiting replay.
func (r *Reconciler) updatePendingGauge() {
	entries, err := os.ReadDir(filepath.Join(r.dataPath, "cleanup"))
	if err != nil {
		return
	}
	pending := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cleanup") {
			pending++
		}
	}
	metrics.JournalRecordsPending.Set(float64(pending))
}
