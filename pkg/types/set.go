package types

import "time"

// Set represents a named grouping scoped to a topic. Every set references
// an existing topic; deleting the topic cascades to its sets.
type Set struct {
	// Core identification fields
	ID          string     `json:"id"`                    // Time-ordered UUIDv7, immutable
	TopicID     string     `json:"topic_id"`              // Owning topic (enforced relationally)
	Name        string     `json:"name"`                  // Display name (not unique)
	Description string     `json:"description,omitempty"` // Optional human-readable description
	Created     time.Time  `json:"created"`               // Server-assigned creation timestamp
	Updated     *time.Time `json:"updated,omitempty"`     // Nil until the first mutation
}

// SetUpdate describes a partial update to a set. Semantics match TopicUpdate.
type SetUpdate struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	ClearDescription bool    `json:"clear_description,omitempty"`
}

// IsZero reports whether the update would change nothing.
func (u SetUpdate) IsZero() bool {
	return u.Name == nil && u.Description == nil && !u.ClearDescription
}
