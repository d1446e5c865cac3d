package types

import "time"

// EventKind identifies a lifecycle event broadcast over the event stream.
type EventKind string

const (
	EventTopicCreated  EventKind = "topic.created"
	EventTopicUpdated  EventKind = "topic.updated"
	EventTopicDeleted  EventKind = "topic.deleted"
	EventSetCreated    EventKind = "set.created"
	EventSetUpdated    EventKind = "set.updated"
	EventSetDeleted    EventKind = "set.deleted"
	EventEntityCreated EventKind = "entity.created"
	EventEntityUpdated EventKind = "entity.updated"
	EventEntityDeleted EventKind = "entity.deleted"
	EventCleanupFailed EventKind = "cleanup.failed"
	EventCleanupDone   EventKind = "cleanup.done"
)

// Event is a lifecycle notification emitted by the engine and the
// lifecycle synchronizer. Events are advisory: consumers must not treat
// them as a consistency mechanism.
type Event struct {
	Kind       EventKind `json:"kind"`
	ID         string    `json:"id,omitempty"`         // Subject id (topic/set/entity)
	Collection string    `json:"collection,omitempty"` // Collection key, for cleanup events
	Timestamp  time.Time `json:"timestamp"`
}
