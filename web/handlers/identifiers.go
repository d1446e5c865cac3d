package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scrypster/topical/pkg/types"
)

// PutIdentifierRequest represents the request body for creating or
// replacing an identifier.
type PutIdentifierRequest struct {
	Expression string `json:"expression"`
}

// ListIdentifiers handles GET /api/topics/{id}/identifiers.
func (h *TopicHandlers) ListIdentifiers(w http.ResponseWriter, r *http.Request) {
	topicID := extractID(r, "id")

	result, err := h.engine.ListIdentifiers(r.Context(), topicID, parseListOptions(r))
	if err != nil {
		respondStoreError(w, "failed to list identifiers", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CreateIdentifier handles POST /api/topics/{id}/identifiers - create an
// identifier with a generated id.
func (h *TopicHandlers) CreateIdentifier(w http.ResponseWriter, r *http.Request) {
	topicID := extractID(r, "id")

	var req PutIdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	ident := &types.Identifier{Expression: req.Expression}
	if err := h.engine.PutIdentifier(r.Context(), topicID, ident); err != nil {
		respondStoreError(w, "failed to create identifier", err)
		return
	}

	respondJSON(w, http.StatusCreated, ident)
}

// GetIdentifier handles GET /api/topics/{id}/identifiers/{iid}.
func (h *TopicHandlers) GetIdentifier(w http.ResponseWriter, r *http.Request) {
	topicID := extractID(r, "id")
	identifierID := extractID(r, "iid")

	ident, err := h.engine.GetIdentifier(r.Context(), topicID, identifierID)
	if err != nil {
		respondStoreError(w, "failed to get identifier", err)
		return
	}

	respondJSON(w, http.StatusOK, ident)
}

// PutIdentifier handles PUT /api/topics/{id}/identifiers/{iid} - create or
// replace an identifier at a known id.
func (h *TopicHandlers) PutIdentifier(w http.ResponseWriter, r *http.Request) {
	topicID := extractID(r, "id")
	identifierID := extractID(r, "iid")

	var req PutIdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	ident := &types.Identifier{ID: identifierID, Expression: req.Expression}
	if err := h.engine.PutIdentifier(r.Context(), topicID, ident); err != nil {
		respondStoreError(w, "failed to put identifier", err)
		return
	}

	respondJSON(w, http.StatusOK, ident)
}

// DeleteIdentifier handles DELETE /api/topics/{id}/identifiers/{iid}.
func (h *TopicHandlers) DeleteIdentifier(w http.ResponseWriter, r *http.Request) {
	topicID := extractID(r, "id")
	identifierID := extractID(r, "iid")

	if err := h.engine.DeleteIdentifier(r.Context(), topicID, identifierID); err != nil {
		respondStoreError(w, "failed to delete identifier", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
