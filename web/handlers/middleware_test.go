package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthDisabledWithoutToken(t *testing.T) {
	handler := RequireAuth(okHandler(), "")

	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", w.Code)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	handler := RequireAuth(okHandler(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireAuthAcceptsToken(t *testing.T) {
	handler := RequireAuth(okHandler(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := RateLimitMiddleware(okHandler(), rl)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("10.0.0.1:1111"); code != http.StatusOK {
		t.Errorf("first request should pass, got %d", code)
	}
	if code := send("10.0.0.1:1111"); code != http.StatusTooManyRequests {
		t.Errorf("second request from same client should be limited, got %d", code)
	}
	// A different client has its own budget.
	if code := send("10.0.0.2:2222"); code != http.StatusOK {
		t.Errorf("other client should pass, got %d", code)
	}
}

func TestCORSPreflights(t *testing.T) {
	handler := CORSMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/topics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
