package types

import "time"

// Entity is a payload record scoped to a set. The payload is an opaque
// structured document: the metadata store records its existence and
// ownership, the set's document collection holds a mirror of the payload
// for key-addressed retrieval. Payload contents are intentionally
// unconstrained.
type Entity struct {
	ID      string                 `json:"id"`                // Time-ordered UUIDv7, immutable
	SetID   string                 `json:"set_id"`            // Owning set (enforced relationally)
	Payload map[string]interface{} `json:"payload"`           // Opaque structured document, required
	Created time.Time              `json:"created"`           // Server-assigned creation timestamp
	Updated *time.Time             `json:"updated,omitempty"` // Nil until the first mutation
}

// EntityUpdate describes a partial update to an entity. Only the payload
// is mutable; a nil Payload leaves it unchanged.
type EntityUpdate struct {
	Payload map[string]interface{} `json:"payload,omitempty"`
}
