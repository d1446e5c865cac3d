package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scrypster/topical/internal/engine"
	"github.com/scrypster/topical/pkg/types"
)

// SetHandlers contains HTTP handlers for the set resource.
type SetHandlers struct {
	engine *engine.CatalogEngine
}

// NewSetHandlers creates a new SetHandlers instance.
func NewSetHandlers(eng *engine.CatalogEngine) *SetHandlers {
	return &SetHandlers{engine: eng}
}

// CreateSetRequest represents the request body for creating a set.
type CreateSetRequest struct {
	TopicID     string `json:"topic_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateSetRequest represents the request body for a partial set update.
type UpdateSetRequest struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	ClearDescription bool    `json:"clear_description,omitempty"`
}

// ListSets handles GET /api/sets - list sets, optionally scoped to a topic
// via the topic_id query parameter.
func (h *SetHandlers) ListSets(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topic_id")

	result, err := h.engine.ListSets(r.Context(), topicID, parseListOptions(r))
	if err != nil {
		respondStoreError(w, "failed to list sets", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CreateSet handles POST /api/sets - create a new set under a topic.
// A missing topic yields 409: the referenced parent does not exist.
func (h *SetHandlers) CreateSet(w http.ResponseWriter, r *http.Request) {
	var req CreateSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	set, err := h.engine.CreateSet(r.Context(), req.TopicID, req.Name, req.Description)
	if err != nil {
		respondStoreError(w, "failed to create set", err)
		return
	}

	respondJSON(w, http.StatusCreated, set)
}

// GetSet handles GET /api/sets/{id} - get a single set by ID.
func (h *SetHandlers) GetSet(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")

	set, err := h.engine.GetSet(r.Context(), id)
	if err != nil {
		respondStoreError(w, "failed to get set", err)
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// UpdateSet handles PATCH /api/sets/{id} - apply a partial update.
func (h *SetHandlers) UpdateSet(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")

	var req UpdateSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	set, err := h.engine.UpdateSet(r.Context(), id, types.SetUpdate{
		Name:             req.Name,
		Description:      req.Description,
		ClearDescription: req.ClearDescription,
	})
	if err != nil {
		respondStoreError(w, "failed to update set", err)
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// DeleteSet handles DELETE /api/sets/{id} - delete a set, its entities,
// and its document collection.
func (h *SetHandlers) DeleteSet(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")

	result, err := h.engine.DeleteSet(r.Context(), id)
	if err != nil {
		respondStoreError(w, "failed to delete set", err)
		return
	}

	respondJSON(w, http.StatusOK, DeleteResponse{
		State:   string(result.State),
		Pending: result.Pending,
	})
}
