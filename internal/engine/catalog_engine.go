// Package engine provides the CatalogEngine, the orchestration layer that
// callers use. It composes the metadata store (authoritative for identity
// and integrity), the document store (schemaless payloads and identifier
// documents), and the lifecycle synchronizer (delete coordination).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/topical/internal/lifecycle"
	"github.com/scrypster/topical/internal/metrics"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// CatalogEngine is the core orchestrator for topics, sets, entities and
// identifiers. Safe for concurrent use.
type CatalogEngine struct {
	meta storage.MetadataStore
	docs storage.DocumentStore
	sync *lifecycle.Synchronizer
	sink lifecycle.EventSink
}

// New creates an engine over the given stores. The synchronizer is
// required; the sink may be nil.
func New(meta storage.MetadataStore, docs storage.DocumentStore, sync *lifecycle.Synchronizer, sink lifecycle.EventSink) (*CatalogEngine, error) {
	if meta == nil {
		return nil, fmt.Errorf("engine: metadata store is required")
	}
	if docs == nil {
		return nil, fmt.Errorf("engine: document store is required")
	}
	if sync == nil {
		return nil, fmt.Errorf("engine: lifecycle synchronizer is required")
	}

	return &CatalogEngine{meta: meta, docs: docs, sync: sync, sink: sink}, nil
}

// observe records the per-operation counter and duration histogram.
func observe(resource, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordCatalogOperation(resource, op, status, time.Since(start).Seconds())
}

func (e *CatalogEngine) publish(kind types.EventKind, id string) {
	if e.sink != nil {
		e.sink.Publish(types.Event{Kind: kind, ID: id, Timestamp: time.Now().UTC()})
	}
}

// --- Topics ---

// CreateTopic creates a topic and returns it with its assigned id.
func (e *CatalogEngine) CreateTopic(ctx context.Context, name, description string) (topic *types.Topic, err error) {
	defer func(start time.Time) { observe("topic", "create", start, err) }(time.Now())

	topic = &types.Topic{Name: name, Description: description}
	if err = e.meta.CreateTopic(ctx, topic); err != nil {
		return nil, err
	}

	e.publish(types.EventTopicCreated, topic.ID)
	return topic, nil
}

// GetTopic retrieves a topic by id.
func (e *CatalogEngine) GetTopic(ctx context.Context, id string) (topic *types.Topic, err error) {
	defer func(start time.Time) { observe("topic", "get", start, err) }(time.Now())
	return e.meta.GetTopic(ctx, id)
}

// ListTopics retrieves topics with pagination and optional name filtering.
func (e *CatalogEngine) ListTopics(ctx context.Context, opts storage.ListOptions) (page *storage.PaginatedResult[types.Topic], err error) {
	defer func(start time.Time) { observe("topic", "list", start, err) }(time.Now())
	return e.meta.ListTopics(ctx, opts)
}

// UpdateTopic applies a partial update and returns the updated topic.
func (e *CatalogEngine) UpdateTopic(ctx context.Context, id string, update types.TopicUpdate) (topic *types.Topic, err error) {
	defer func(start time.Time) { observe("topic", "update", start, err) }(time.Now())

	topic, err = e.meta.UpdateTopic(ctx, id, update)
	if err != nil {
		return nil, err
	}

	e.publish(types.EventTopicUpdated, id)
	return topic, nil
}

// DeleteTopic deletes a topic, its sets and entities, and its document
// collections via the lifecycle synchronizer. The returned result reports
// whether any collection cleanup was deferred to the journal.
func (e *CatalogEngine) DeleteTopic(ctx context.Context, id string) (result *lifecycle.Result, err error) {
	defer func(start time.Time) { observe("topic", "delete", start, err) }(time.Now())

	result, err = e.sync.DeleteTopic(ctx, id)
	if err != nil {
		return nil, err
	}

	e.publish(types.EventTopicDeleted, id)
	return result, nil
}

// SearchTopics performs ranked full-text search over topic names and
// descriptions.
func (e *CatalogEngine) SearchTopics(ctx context.Context, opts storage.SearchOptions) (page *storage.PaginatedResult[types.Topic], err error) {
	defer func(start time.Time) { observe("topic", "search", start, err) }(time.Now())
	return e.meta.SearchTopics(ctx, opts)
}

// --- Sets ---

// CreateSet creates a set under an existing topic. A missing topic
// surfaces as ErrConflict with nothing persisted.
func (e *CatalogEngine) CreateSet(ctx context.Context, topicID, name, description string) (set *types.Set, err error) {
	defer func(start time.Time) { observe("set", "create", start, err) }(time.Now())

	set = &types.Set{TopicID: topicID, Name: name, Description: description}
	if err = e.meta.CreateSet(ctx, set); err != nil {
		return nil, err
	}

	e.publish(types.EventSetCreated, set.ID)
	return set, nil
}

// GetSet retrieves a set by id.
func (e *CatalogEngine) GetSet(ctx context.Context, id string) (set *types.Set, err error) {
	defer func(start time.Time) { observe("set", "get", start, err) }(time.Now())
	return e.meta.GetSet(ctx, id)
}

// ListSets retrieves sets with pagination, optionally scoped to a topic.
func (e *CatalogEngine) ListSets(ctx context.Context, topicID string, opts storage.ListOptions) (page *storage.PaginatedResult[types.Set], err error) {
	defer func(start time.Time) { observe("set", "list", start, err) }(time.Now())
	return e.meta.ListSets(ctx, topicID, opts)
}

// UpdateSet applies a partial update and returns the updated set.
func (e *CatalogEngine) UpdateSet(ctx context.Context, id string, update types.SetUpdate) (set *types.Set, err error) {
	defer func(start time.Time) { observe("set", "update", start, err) }(time.Now())

	set, err = e.meta.UpdateSet(ctx, id, update)
	if err != nil {
		return nil, err
	}

	e.publish(types.EventSetUpdated, id)
	return set, nil
}

// DeleteSet deletes a set, its entities, and its document collection via
// the lifecycle synchronizer.
func (e *CatalogEngine) DeleteSet(ctx context.Context, id string) (result *lifecycle.Result, err error) {
	defer func(start time.Time) { observe("set", "delete", start, err) }(time.Now())

	result, err = e.sync.DeleteSet(ctx, id)
	if err != nil {
		return nil, err
	}

	e.publish(types.EventSetDeleted, id)
	return result, nil
}

// --- Entities ---

// CreateEntity creates an entity under an existing set. The payload is
// written to the relational row and mirrored into the owning set's
// document collection. The metadata row is authoritative: a mirror write
// failure is logged and counted, not surfaced, and the document converges
// on the next payload write.
func (e *CatalogEngine) CreateEntity(ctx context.Context, setID string, payload map[string]interface{}) (entity *types.Entity, err error) {
	defer func(start time.Time) { observe("entity", "create", start, err) }(time.Now())

	entity = &types.Entity{SetID: setID, Payload: payload}
	if err = e.meta.CreateEntity(ctx, entity); err != nil {
		return nil, err
	}

	e.mirrorEntity(ctx, entity)
	e.publish(types.EventEntityCreated, entity.ID)
	return entity, nil
}

// GetEntity retrieves an entity's relational row by id.
func (e *CatalogEngine) GetEntity(ctx context.Context, id string) (entity *types.Entity, err error) {
	defer func(start time.Time) { observe("entity", "get", start, err) }(time.Now())
	return e.meta.GetEntity(ctx, id)
}

// GetEntityDocument retrieves an entity's mirrored document by two-hop
// addressing: the metadata row yields the owning set's collection key,
// then the document is fetched by that key. No relational join is
// involved.
func (e *CatalogEngine) GetEntityDocument(ctx context.Context, id string) (doc *types.Document, err error) {
	defer func(start time.Time) { observe("entity", "get_document", start, err) }(time.Now())

	entity, err := e.meta.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	key, err := e.setCollectionKey(ctx, entity.SetID)
	if err != nil {
		return nil, err
	}

	return e.docs.GetDocument(ctx, key, id)
}

// ListEntities retrieves a set's entities with pagination.
func (e *CatalogEngine) ListEntities(ctx context.Context, setID string, opts storage.ListOptions) (page *storage.PaginatedResult[types.Entity], err error) {
	defer func(start time.Time) { observe("entity", "list", start, err) }(time.Now())
	return e.meta.ListEntities(ctx, setID, opts)
}

// UpdateEntity replaces the entity's payload and refreshes the mirror.
func (e *CatalogEngine) UpdateEntity(ctx context.Context, id string, update types.EntityUpdate) (entity *types.Entity, err error) {
	defer func(start time.Time) { observe("entity", "update", start, err) }(time.Now())

	entity, err = e.meta.UpdateEntity(ctx, id, update)
	if err != nil {
		return nil, err
	}

	e.mirrorEntity(ctx, entity)
	e.publish(types.EventEntityUpdated, id)
	return entity, nil
}

// DeleteEntity removes the entity row and its mirrored document.
func (e *CatalogEngine) DeleteEntity(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("entity", "delete", start, err) }(time.Now())

	entity, err := e.meta.GetEntity(ctx, id)
	if err != nil {
		return err
	}

	key, keyErr := e.setCollectionKey(ctx, entity.SetID)

	if err = e.meta.DeleteEntity(ctx, id); err != nil {
		return err
	}

	if keyErr == nil {
		if derr := e.docs.DeleteDocument(ctx, key, id); derr != nil && !errors.Is(derr, storage.ErrNotFound) {
			log.Printf("engine: failed to delete mirrored document %s/%s: %v", key, id, derr)
		}
	}

	e.publish(types.EventEntityDeleted, id)
	return nil
}

// mirrorEntity writes the entity payload into the owning set's collection.
func (e *CatalogEngine) mirrorEntity(ctx context.Context, entity *types.Entity) {
	key, err := e.setCollectionKey(ctx, entity.SetID)
	if err != nil {
		log.Printf("engine: failed to resolve collection for set %s: %v", entity.SetID, err)
		metrics.RecordDocumentWrite("error")
		return
	}

	if err := e.docs.PutDocument(ctx, key, entity.ID, entity.Payload); err != nil {
		log.Printf("engine: failed to mirror entity %s into %s: %v", entity.ID, key, err)
		metrics.RecordDocumentWrite("error")
		return
	}

	metrics.RecordDocumentWrite("ok")
}

// setCollectionKey resolves a set id to its collection key.
func (e *CatalogEngine) setCollectionKey(ctx context.Context, setID string) (string, error) {
	set, err := e.meta.GetSet(ctx, setID)
	if err != nil {
		return "", err
	}
	return storage.SetCollectionKey(set.ID, set.Name), nil
}

// topicCollectionKey resolves a topic id to its collection key, surfacing
// a missing topic as ErrNotFound.
func (e *CatalogEngine) topicCollectionKey(ctx context.Context, topicID string) (string, error) {
	topic, err := e.meta.GetTopic(ctx, topicID)
	if err != nil {
		return "", err
	}
	return storage.TopicCollectionKey(topic.ID, topic.Name), nil
}
