package types

import "github.com/google/uuid"

// NewID generates a time-ordered UUIDv7 identifier.
// UUIDv7 embeds a millisecond timestamp in the high bits, so freshly
// generated ids sort roughly by creation time. Generation only fails when
// the system entropy source is unavailable; in that case we fall back to
// the non-ordered v4 variant rather than returning an error to every caller.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
