package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scrypster/topical/pkg/types"
)

// CreateEntityRequest represents the request body for creating an entity.
type CreateEntityRequest struct {
	Payload map[string]interface{} `json:"payload"`
}

// UpdateEntityRequest represents the request body for replacing an
// entity's payload.
type UpdateEntityRequest struct {
	Payload map[string]interface{} `json:"payload"`
}

// ListEntities handles GET /api/sets/{id}/entities.
func (h *SetHandlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	setID := extractID(r, "id")

	result, err := h.engine.ListEntities(r.Context(), setID, parseListOptions(r))
	if err != nil {
		respondStoreError(w, "failed to list entities", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CreateEntity handles POST /api/sets/{id}/entities - create an entity
// whose payload is mirrored into the set's document collection.
func (h *SetHandlers) CreateEntity(w http.ResponseWriter, r *http.Request) {
	setID := extractID(r, "id")

	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	entity, err := h.engine.CreateEntity(r.Context(), setID, req.Payload)
	if err != nil {
		respondStoreError(w, "failed to create entity", err)
		return
	}

	respondJSON(w, http.StatusCreated, entity)
}

// GetEntity handles GET /api/sets/{id}/entities/{eid}.
func (h *SetHandlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := extractID(r, "eid")

	entity, err := h.engine.GetEntity(r.Context(), entityID)
	if err != nil {
		respondStoreError(w, "failed to get entity", err)
		return
	}

	respondJSON(w, http.StatusOK, entity)
}

// GetEntityDocument handles GET /api/sets/{id}/entities/{eid}/document -
// the entity's mirrored document fetched by two-hop addressing.
func (h *SetHandlers) GetEntityDocument(w http.ResponseWriter, r *http.Request) {
	entityID := extractID(r, "eid")

	doc, err := h.engine.GetEntityDocument(r.Context(), entityID)
	if err != nil {
		respondStoreError(w, "failed to get entity document", err)
		return
	}

	respondJSON(w, http.StatusOK, doc)
}

// UpdateEntity handles PATCH /api/sets/{id}/entities/{eid} - replace the
// payload.
func (h *SetHandlers) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	entityID := extractID(r, "eid")

	var req UpdateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	entity, err := h.engine.UpdateEntity(r.Context(), entityID, types.EntityUpdate{Payload: req.Payload})
	if err != nil {
		respondStoreError(w, "failed to update entity", err)
		return
	}

	respondJSON(w, http.StatusOK, entity)
}

// DeleteEntity handles DELETE /api/sets/{id}/entities/{eid}.
func (h *SetHandlers) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	entityID := extractID(r, "eid")

	if err := h.engine.DeleteEntity(r.Context(), entityID); err != nil {
		respondStoreError(w, "failed to delete entity", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
