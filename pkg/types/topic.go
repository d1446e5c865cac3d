package types

import "time"

const (
	// MaxNameLen is the maximum length of a topic or set name.
	MaxNameLen = 255

	// MaxDescriptionLen is the maximum length of a topic or set description.
	MaxDescriptionLen = 4096
)

// Topic represents a named subject area. Topics are the root of the
// ownership hierarchy: sets belong to topics, entities belong to sets, and
// identifier documents live in a per-topic document collection.
type Topic struct {
	// Core identification fields
	ID          string     `json:"id"`                    // Time-ordered UUIDv7, immutable
	Name        string     `json:"name"`                  // Display name (not unique)
	Description string     `json:"description,omitempty"` // Optional human-readable description
	Created     time.Time  `json:"created"`               // Server-assigned creation timestamp
	Updated     *time.Time `json:"updated,omitempty"`     // Nil until the first mutation
}

// TopicUpdate describes a partial update to a topic.
// A nil Name leaves the name unchanged. Description uses a separate
// presence flag so callers can distinguish "clear the description"
// (ClearDescription=true) from "leave it alone" (Description=nil).
type TopicUpdate struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	ClearDescription bool    `json:"clear_description,omitempty"`
}

// IsZero reports whether the update would change nothing.
func (u TopicUpdate) IsZero() bool {
	return u.Name == nil && u.Description == nil && !u.ClearDescription
}
