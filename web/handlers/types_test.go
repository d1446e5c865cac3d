package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scrypster/topical/internal/storage"
)

func TestRespondStoreErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", storage.ErrInvalidInput, http.StatusBadRequest},
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"conflict", storage.ErrConflict, http.StatusConflict},
		{"timeout", storage.ErrTimeout, http.StatusGatewayTimeout},
		{
			"wrapped timeout",
			fmt.Errorf("sqlite: failed to get topic: %w", storage.ErrTimeout),
			http.StatusGatewayTimeout,
		},
		{
			// The full retryable-timeout chain: a driver deadline mapped by
			// the storage layer must reach the client as a 504.
			"driver deadline",
			storage.MapContextError(context.DeadlineExceeded),
			http.StatusGatewayTimeout,
		},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondStoreError(w, "request failed", tt.err)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON error body, got Content-Type %q", ct)
			}
		})
	}
}
