// Package lifecycle keeps the document store consistent with the metadata
// store across deletes. The metadata delete is the commit point: once the
// relational rows are gone the delete has happened, and dropping the owned
// document collections is a compensating side effect that may be retried,
// journaled, and replayed — but never rolls the metadata back.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/metrics"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// State tracks how far a delete request progressed.
type State string

const (
	// StateRequested is the initial state before any store is touched.
	StateRequested State = "requested"
	// StateMetadataDeleted means the relational rows are gone. The delete
	// is committed from the caller's perspective.
	StateMetadataDeleted State = "metadata_deleted"
	// StateDocumentsDeleted means every owned collection was dropped.
	StateDocumentsDeleted State = "documents_deleted"
	// StateCleanupFailed means one or more collections survived; their
	// cleanup is journaled for replay.
	StateCleanupFailed State = "cleanup_failed"
)

// Result reports the outcome of a synchronized delete.
type Result struct {
	State State
	// Pending lists collection keys whose cleanup was journaled.
	Pending []string
}

// EventSink receives lifecycle events. The server's websocket hub
// implements it; a nil sink is valid and drops events.
type EventSink interface {
	Publish(event types.Event)
}

// Synchronizer coordinates metadata deletes with document cleanup.
type Synchronizer struct {
	meta     storage.MetadataStore
	docs     storage.DocumentStore
	writer   *journal.Writer
	breaker  *gobreaker.CircuitBreaker
	sink     EventSink
	attempts int
	backoff  time.Duration
}

// Options tunes the synchronizer's retry behavior.
type Options struct {
	// CleanupAttempts is the number of DeleteCollection attempts before a
	// failure is journaled. Defaults to 3.
	CleanupAttempts int
	// CleanupBackoff is the pause between attempts. Defaults to 100ms.
	CleanupBackoff time.Duration
}

// NewSynchronizer wires a synchronizer over the two stores. The journal
// writer is required; the sink may be nil.
func NewSynchronizer(meta storage.MetadataStore, docs storage.DocumentStore, writer *journal.Writer, sink EventSink, opts Options) *Synchronizer {
	if opts.CleanupAttempts <= 0 {
		opts.CleanupAttempts = 3
	}
	if opts.CleanupBackoff <= 0 {
		opts.CleanupBackoff = 100 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "document-cleanup",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("lifecycle: breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Synchronizer{
		meta:     meta,
		docs:     docs,
		writer:   writer,
		breaker:  breaker,
		sink:     sink,
		attempts: opts.CleanupAttempts,
		backoff:  opts.CleanupBackoff,
	}
}

// DeleteTopic deletes a topic's metadata (cascading to its sets and
// entities) and then drops the topic's collection plus every owned set's
// collection. Set collection keys are captured before the metadata delete,
// since the cascade destroys the rows the keys derive from.
func (s *Synchronizer) DeleteTopic(ctx context.Context, id string) (*Result, error) {
	topic, err := s.meta.GetTopic(ctx, id)
	if err != nil {
		return nil, err
	}

	keys := []string{storage.TopicCollectionKey(topic.ID, topic.Name)}

	setKeys, err := s.collectSetKeys(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: failed to collect set collections for topic %s: %w", id, err)
	}
	keys = append(keys, setKeys...)

	if err := s.meta.DeleteTopic(ctx, id); err != nil {
		return nil, err
	}

	return s.cleanup(ctx, "topic", id, keys), nil
}

// DeleteSet deletes a set's metadata (cascading to its entities) and then
// drops the set's collection.
func (s *Synchronizer) DeleteSet(ctx context.Context, id string) (*Result, error) {
	set, err := s.meta.GetSet(ctx, id)
	if err != nil {
		return nil, err
	}

	key := storage.SetCollectionKey(set.ID, set.Name)

	if err := s.meta.DeleteSet(ctx, id); err != nil {
		return nil, err
	}

	return s.cleanup(ctx, "set", id, []string{key}), nil
}

// collectSetKeys pages through every set owned by the topic and derives
// its collection key.
func (s *Synchronizer) collectSetKeys(ctx context.Context, topicID string) ([]string, error) {
	var keys []string

	opts := storage.ListOptions{Page: 1, Limit: 250}
	for {
		page, err := s.meta.ListSets(ctx, topicID, opts)
		if err != nil {
			return nil, err
		}
		for _, set := range page.Items {
			keys = append(keys, storage.SetCollectionKey(set.ID, set.Name))
		}
		if !page.HasMore {
			return keys, nil
		}
		opts.Page++
	}
}

// cleanup drops each collection, retrying through the breaker and
// journaling anything that will not go away. Metadata is already deleted
// by the time cleanup runs, so errors here never surface to the caller.
func (s *Synchronizer) cleanup(ctx context.Context, kind, ownerID string, keys []string) *Result {
	result := &Result{State: StateMetadataDeleted}

	for _, key := range keys {
		if err := s.dropCollection(ctx, key); err != nil {
			log.Printf("lifecycle: cleanup of %s failed, journaling: %v", key, err)
			metrics.RecordCleanup(kind, "journaled")

			if jerr := s.writer.Append(journal.Record{
				CollectionKey: key,
				Kind:          kind,
				OwnerID:       ownerID,
				Reason:        err.Error(),
				Attempts:      s.attempts,
			}); jerr != nil {
				// The journal itself failed; the reconciler's orphan scan
				// is the remaining safety net.
				log.Printf("lifecycle: failed to journal cleanup of %s: %v", key, jerr)
			}

			result.Pending = append(result.Pending, key)
			continue
		}
		metrics.RecordCleanup(kind, "ok")
	}

	if len(result.Pending) > 0 {
		result.State = StateCleanupFailed
		s.publish(types.Event{Kind: types.EventCleanupFailed, ID: ownerID, Timestamp: time.Now().UTC()})
	} else {
		result.State = StateDocumentsDeleted
		s.publish(types.Event{Kind: types.EventCleanupDone, ID: ownerID, Timestamp: time.Now().UTC()})
	}

	return result
}

// dropCollection attempts DeleteCollection through the circuit breaker
// with bounded retries. An open breaker fails fast so a dead document
// store does not stall every delete for attempts*backoff.
func (s *Synchronizer) dropCollection(ctx context.Context, key string) error {
	var lastErr error

	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			metrics.CleanupRetries.Inc()
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.docs.DeleteCollection(ctx, key)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return lastErr
		}
	}

	return lastErr
}

// ReplayRecord retries a journaled cleanup. On failure the record is
// re-journaled with its attempt count bumped, so nothing is lost between
// replays.
func (s *Synchronizer) ReplayRecord(ctx context.Context, rec journal.Record) error {
	err := s.dropCollection(ctx, rec.CollectionKey)
	if err != nil {
		rec.Attempts++
		rec.Reason = err.Error()
		if jerr := s.writer.Append(rec); jerr != nil {
			log.Printf("lifecycle: failed to re-journal %s: %v", rec.CollectionKey, jerr)
		}
		metrics.RecordCleanup(rec.Kind, "journaled")
		return fmt.Errorf("lifecycle: replay of %s failed: %w: %v", rec.CollectionKey, storage.ErrCleanupPending, err)
	}

	metrics.RecordCleanup(rec.Kind, "replayed")
	s.publish(types.Event{
		Kind:       types.EventCleanupDone,
		ID:         rec.OwnerID,
		Collection: rec.CollectionKey,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

func (s *Synchronizer) publish(event types.Event) {
	if s.sink != nil {
		s.sink.Publish(event)
	}
}
