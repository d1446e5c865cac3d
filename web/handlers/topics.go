package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scrypster/topical/internal/engine"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// TopicHandlers contains HTTP handlers for the topic resource.
type TopicHandlers struct {
	engine *engine.CatalogEngine
}

// NewTopicHandlers creates a new TopicHandlers instance.
func NewTopicHandlers(eng *engine.CatalogEngine) *TopicHandlers {
	return &TopicHandlers{engine: eng}
}

// CreateTopicRequest represents the request body for creating a topic.
type CreateTopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateTopicRequest represents the request body for a partial topic update.
// ClearDescription distinguishes "remove the description" from "leave it".
type UpdateTopicRequest struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	ClearDescription bool    `json:"clear_description,omitempty"`
}

// DeleteResponse reports how far a synchronized delete progressed.
type DeleteResponse struct {
	State   string   `json:"state"`
	Pending []string `json:"pending_collections,omitempty"`
}

// ListTopics handles GET /api/topics - list topics with pagination and
// optional exact-name filtering.
func (h *TopicHandlers) ListTopics(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.ListTopics(r.Context(), parseListOptions(r))
	if err != nil {
		respondStoreError(w, "failed to list topics", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CreateTopic handles POST /api/topics - create a new topic.
func (h *TopicHandlers) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	topic, err := h.engine.CreateTopic(r.Context(), req.Name, req.Description)
	if err != nil {
		respondStoreError(w, "failed to create topic", err)
		return
	}

	respondJSON(w, http.StatusCreated, topic)
}

// GetTopic handles GET /api/topics/{id} - get a single topic by ID.
func (h *TopicHandlers) GetTopic(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")

	topic, err := h.engine.GetTopic(r.Context(), id)
	if err != nil {
		respondStoreError(w, "failed to get topic", err)
		return
	}

	respondJSON(w, http.StatusOK, topic)
}

// UpdateTopic handles PATCH /api/topics/{id} - apply a partial update.
func (h *TopicHandlers) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")

	var req UpdateTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	topic, err := h.engine.UpdateTopic(r.Context(), id, types.TopicUpdate{
		Name:             req.Name,
		Description:      req.Description,
		ClearDescription: req.ClearDescription,
	})
	if err != nil {
		respondStoreError(w, "failed to update topic", err)
		return
	}

	respondJSON(w, http.StatusOK, topic)
}

// DeleteTopic handles DELETE /api/topics/{id} - delete a topic, its sets
// and entities, and its document collections.
func (h *TopicHandlers) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")

	result, err := h.engine.DeleteTopic(r.Context(), id)
	if err != nil {
		respondStoreError(w, "failed to delete topic", err)
		return
	}

	respondJSON(w, http.StatusOK, DeleteResponse{
		State:   string(result.State),
		Pending: result.Pending,
	})
}

// SearchTopics handles GET /api/topics/search?q= - ranked full-text search
// over topic names and descriptions.
func (h *TopicHandlers) SearchTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.SearchOptions{
		Query:  q.Get("q"),
		Limit:  parseInt(q.Get("limit"), 0),
		Offset: parseInt(q.Get("offset"), 0),
	}

	result, err := h.engine.SearchTopics(r.Context(), opts)
	if err != nil {
		respondStoreError(w, "failed to search topics", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
