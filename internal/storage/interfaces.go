// Package storage provides composable storage interfaces for the Topical system.
//
// The storage layer is split along the two halves of the hybrid design: a
// relational metadata store that owns identity, referential integrity, and
// full-text search for topics, sets, and entities, and a schemaless
// document store that owns per-collection payload and identifier documents.
// The interfaces are small and focused so backends can be implemented
// independently and composed as needed.
package storage

import (
	"context"

	"github.com/scrypster/topical/pkg/types"
)

// TopicStore provides CRUD, listing, and ranked search for topics.
type TopicStore interface {
	// CreateTopic validates and persists a new topic. A missing ID and
	// Created timestamp are assigned server-side. Returns ErrInvalidInput
	// when the name is empty or a length bound is exceeded.
	CreateTopic(ctx context.Context, topic *types.Topic) error

	// GetTopic retrieves a topic by id. Returns ErrNotFound if absent.
	GetTopic(ctx context.Context, id string) (*types.Topic, error)

	// ListTopics retrieves topics with pagination and optional name filtering.
	ListTopics(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Topic], error)

	// UpdateTopic applies a partial update and refreshes the updated
	// timestamp exactly once per mutating statement. Returns ErrNotFound
	// if the id is unknown.
	UpdateTopic(ctx context.Context, id string, update types.TopicUpdate) (*types.Topic, error)

	// DeleteTopic removes a topic and, by cascade, every set and entity it
	// owns. Returns ErrNotFound if the id is unknown.
	DeleteTopic(ctx context.Context, id string) error

	// SearchTopics performs ranked full-text search over topic name and
	// description. Results are ordered by relevance rank descending, ties
	// broken by created ascending.
	SearchTopics(ctx context.Context, opts SearchOptions) (*PaginatedResult[types.Topic], error)
}

// SetStore provides CRUD and listing for sets.
type SetStore interface {
	// CreateSet persists a new set under an existing topic. Returns
	// ErrConflict when the referenced topic does not exist; no row is
	// persisted in that case.
	CreateSet(ctx context.Context, set *types.Set) error

	// GetSet retrieves a set by id. Returns ErrNotFound if absent.
	GetSet(ctx context.Context, id string) (*types.Set, error)

	// ListSets retrieves sets with pagination. When topicID is non-empty,
	// results are restricted to that topic.
	ListSets(ctx context.Context, topicID string, opts ListOptions) (*PaginatedResult[types.Set], error)

	// UpdateSet applies a partial update. Returns ErrNotFound if the id is unknown.
	UpdateSet(ctx context.Context, id string, update types.SetUpdate) (*types.Set, error)

	// DeleteSet removes a set and, by cascade, every entity it owns.
	// Returns ErrNotFound if the id is unknown.
	DeleteSet(ctx context.Context, id string) error
}

// EntityStore provides CRUD and listing for entity rows.
type EntityStore interface {
	// CreateEntity persists a new entity under an existing set. Returns
	// ErrConflict when the referenced set does not exist.
	CreateEntity(ctx context.Context, entity *types.Entity) error

	// GetEntity retrieves an entity by id. Returns ErrNotFound if absent.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// ListEntities retrieves entities belonging to a set with pagination.
	ListEntities(ctx context.Context, setID string, opts ListOptions) (*PaginatedResult[types.Entity], error)

	// UpdateEntity applies a partial update. Returns ErrNotFound if the id is unknown.
	UpdateEntity(ctx context.Context, id string, update types.EntityUpdate) (*types.Entity, error)

	// DeleteEntity removes an entity row. Returns ErrNotFound if the id is unknown.
	DeleteEntity(ctx context.Context, id string) error
}

// MetadataStore is the full relational half of the hybrid design: it is
// authoritative for the identity and existence of topics, sets, and
// entities.
type MetadataStore interface {
	TopicStore
	SetStore
	EntityStore

	// Close releases any resources held by the store.
	Close() error
}

// DocumentStore is the schemaless half of the hybrid design. Collections
// are addressed by keys derived from metadata primary keys (see
// CollectionKey); the store itself has no notion of which collections
// ought to exist.
type DocumentStore interface {
	// PutDocument upserts a document. The body is stored verbatim with no
	// validation. The collection is created on first write.
	PutDocument(ctx context.Context, collectionKey, docID string, body map[string]interface{}) error

	// GetDocument retrieves a document. Returns ErrNotFound when either
	// the collection or the document is absent.
	GetDocument(ctx context.Context, collectionKey, docID string) (*types.Document, error)

	// ListDocuments retrieves documents in a collection with pagination,
	// ordered by document id. An absent collection yields an empty page.
	ListDocuments(ctx context.Context, collectionKey string, opts ListOptions) (*PaginatedResult[types.Document], error)

	// DeleteDocument removes a single document. Returns ErrNotFound when
	// the collection or document is absent.
	DeleteDocument(ctx context.Context, collectionKey, docID string) error

	// DeleteCollection removes a collection and all its documents. It is
	// idempotent: deleting an absent collection is a silent no-op.
	DeleteCollection(ctx context.Context, collectionKey string) error

	// ListCollections returns the keys of every collection currently held
	// by the store. Used by the reconciler to detect orphans.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
