package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/topical/internal/config"
	"github.com/scrypster/topical/internal/engine"
	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/lifecycle"
	"github.com/scrypster/topical/internal/storage/docstore"
	"github.com/scrypster/topical/internal/storage/sqlite"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()

	meta, err := sqlite.NewMetadataStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	docs, err := docstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	writer := journal.NewWriter(t.TempDir())
	sync := lifecycle.NewSynchronizer(meta, docs, writer, nil, lifecycle.Options{
		CleanupAttempts: 1,
		CleanupBackoff:  time.Millisecond,
	})

	eng, err := engine.New(meta, docs, sync, nil)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	if mutate != nil {
		mutate(cfg)
	}

	return NewRouter(cfg, eng, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(into))
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestTopicCRUDOverHTTP(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/topics", map[string]string{
		"name":        "Fauna",
		"description": "Animal taxonomy",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var topic struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decodeBody(t, w, &topic)
	require.NotEmpty(t, topic.ID)

	w = doJSON(t, router, http.MethodGet, "/api/topics/"+topic.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/topics/"+topic.ID, map[string]string{"name": "Wildlife"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/topics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int `json:"total"`
	}
	decodeBody(t, w, &page)
	assert.Equal(t, 1, page.Total)

	w = doJSON(t, router, http.MethodDelete, "/api/topics/"+topic.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var del struct {
		State string `json:"state"`
	}
	decodeBody(t, w, &del)
	assert.Equal(t, "documents_deleted", del.State)
}

func TestErrorStatusMapping(t *testing.T) {
	router := newTestRouter(t, nil)

	// Unknown topic -> 404.
	w := doJSON(t, router, http.MethodGet, "/api/topics/0190a8c2-unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Validation failure -> 400.
	w = doJSON(t, router, http.MethodPost, "/api/topics", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing parent topic -> 409.
	w = doJSON(t, router, http.MethodPost, "/api/sets", map[string]string{
		"topic_id": "0190a8c2-unknown",
		"name":     "Orphans",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Malformed body -> 400.
	req := httptest.NewRequest(http.MethodPost, "/api/topics", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unsupported method -> 405.
	w = doJSON(t, router, http.MethodPut, "/api/topics", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, name := range []string{"Fauna", "Minerals"} {
		w := doJSON(t, router, http.MethodPost, "/api/topics", map[string]string{
			"name":        name,
			"description": name + " reference data",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/topics/search?q=minerals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	decodeBody(t, w, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Minerals", page.Items[0].Name)
}

func TestEntityRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/topics", map[string]string{"name": "Fauna"})
	require.Equal(t, http.StatusCreated, w.Code)
	var topic struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &topic)

	w = doJSON(t, router, http.MethodPost, "/api/sets", map[string]string{
		"topic_id": topic.ID,
		"name":     "Birds",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var set struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &set)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/sets/%s/entities", set.ID), map[string]interface{}{
		"payload": map[string]interface{}{"species": "Corvus corax"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var entity struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &entity)

	// Mirrored document is reachable by two-hop addressing.
	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/sets/%s/entities/%s/document", set.ID, entity.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Body map[string]interface{} `json:"body"`
	}
	decodeBody(t, w, &doc)
	assert.Equal(t, "Corvus corax", doc.Body["species"])

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/sets/%s/entities/%s", set.ID, entity.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestIdentifierRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/topics", map[string]string{"name": "Fauna"})
	require.Equal(t, http.StatusCreated, w.Code)
	var topic struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &topic)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/topics/%s/identifiers", topic.ID), map[string]string{
		"expression": `species =~ "^Corvus"`,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var ident struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &ident)
	require.NotEmpty(t, ident.ID)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/topics/%s/identifiers/%s", topic.ID, ident.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/topics/%s/identifiers/%s", topic.ID, ident.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/topics/%s/identifiers/%s", topic.ID, ident.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBearerAuth(t *testing.T) {
	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.Server.APIToken = "secret-token"
	})

	// No token -> 401.
	w := doJSON(t, router, http.MethodGet, "/api/topics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong token -> 401.
	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct token -> 200.
	req = httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	w = doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiting(t *testing.T) {
	router := newTestRouter(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 1
		cfg.Server.RateBurst = 1
	})

	first := doJSON(t, router, http.MethodGet, "/api/topics", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, router, http.MethodGet, "/api/topics", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
