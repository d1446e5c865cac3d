package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates that the referenced topic, set, entity, or
	// document does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates malformed input: a missing required field
	// or a field exceeding its length bound.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a referential-integrity violation, e.g. an
	// insert referencing a topic or set that does not exist.
	ErrConflict = errors.New("conflicting reference")

	// ErrTimeout indicates a store call exceeded its caller-supplied
	// deadline. Timeouts are retryable.
	ErrTimeout = errors.New("store call timed out")

	// ErrCleanupPending indicates that a document collection could not be
	// removed after its metadata row was already deleted. The metadata
	// deletion is authoritative and final; the orphaned collection stays
	// journalled for another replay. Returned by the lifecycle
	// synchronizer when a journaled cleanup fails again.
	ErrCleanupPending = errors.New("document cleanup pending reconciliation")
)

// MapContextError converts context deadline errors from store drivers into
// the retryable ErrTimeout sentinel. Other errors pass through unchanged.
func MapContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T `json:"items"`

	// Total is the total number of items across all pages.
	Total int `json:"total"`

	// Page is the current page number (1-indexed).
	Page int `json:"page"`

	// PageSize is the number of items per page.
	PageSize int `json:"page_size"`

	// HasMore indicates whether there are more pages available.
	HasMore bool `json:"has_more"`
}

// ListOptions provides pagination and filtering options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 25, max: 250).
	Limit int

	// SortBy specifies the field to sort by ("created", "updated", "name", "id").
	SortBy string

	// SortOrder specifies the sort direction ("asc" or "desc", default: "asc").
	SortOrder string

	// Name filters results to rows whose name matches exactly.
	// Names are not unique, so this may match many rows.
	Name string
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	// Whitelist validation for SortBy to prevent SQL injection.
	allowedSortFields := map[string]bool{
		"created": true,
		"updated": true,
		"name":    true,
		"id":      true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "created"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "asc"
	}

	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit < 1 {
		o.Limit = 25
	}

	if o.Limit > 250 {
		o.Limit = 250
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// SearchOptions provides options for ranked full-text search.
type SearchOptions struct {
	// Query is the search query string, matched against name and description.
	Query string

	// Limit is the maximum number of results to return (default: 25, max: 250).
	Limit int

	// Offset is the number of results to skip. Because results are ordered
	// by rank descending with created ascending as the tie-break, a search
	// restarted from a given offset continues the same sequence.
	Offset int
}

// Normalize applies defaults and validates the SearchOptions.
func (o *SearchOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 25
	}

	if o.Limit > 250 {
		o.Limit = 250
	}

	if o.Offset < 0 {
		o.Offset = 0
	}
}
