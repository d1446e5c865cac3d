// Package server provides HTTP server initialization and lifecycle
// management for the Topical API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/topical/internal/config"
	"github.com/scrypster/topical/internal/engine"
	"github.com/scrypster/topical/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the full handler chain for the given engine and hub.
// Exposed separately from Start so tests can drive it with httptest.
func NewRouter(cfg *config.Config, eng *engine.CatalogEngine, hub *handlers.EventHub) http.Handler {
	mux := http.NewServeMux()

	topicHandlers := handlers.NewTopicHandlers(eng)
	setHandlers := handlers.NewSetHandlers(eng)

	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/api/topics", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			topicHandlers.ListTopics(w, r)
		case http.MethodPost:
			topicHandlers.CreateTopic(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("GET /api/topics/search", topicHandlers.SearchTopics)
	apiMux.HandleFunc("/api/topics/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			topicHandlers.GetTopic(w, r)
		case http.MethodPatch:
			topicHandlers.UpdateTopic(w, r)
		case http.MethodDelete:
			topicHandlers.DeleteTopic(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	apiMux.HandleFunc("/api/topics/{id}/identifiers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			topicHandlers.ListIdentifiers(w, r)
		case http.MethodPost:
			topicHandlers.CreateIdentifier(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/topics/{id}/identifiers/{iid}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			topicHandlers.GetIdentifier(w, r)
		case http.MethodPut:
			topicHandlers.PutIdentifier(w, r)
		case http.MethodDelete:
			topicHandlers.DeleteIdentifier(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	apiMux.HandleFunc("/api/sets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			setHandlers.ListSets(w, r)
		case http.MethodPost:
			setHandlers.CreateSet(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/sets/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			setHandlers.GetSet(w, r)
		case http.MethodPatch:
			setHandlers.UpdateSet(w, r)
		case http.MethodDelete:
			setHandlers.DeleteSet(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	apiMux.HandleFunc("/api/sets/{id}/entities", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			setHandlers.ListEntities(w, r)
		case http.MethodPost:
			setHandlers.CreateEntity(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/sets/{id}/entities/{eid}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			setHandlers.GetEntity(w, r)
		case http.MethodPatch:
			setHandlers.UpdateEntity(w, r)
		case http.MethodDelete:
			setHandlers.DeleteEntity(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("GET /api/sets/{id}/entities/{eid}/document", setHandlers.GetEntityDocument)

	// Health endpoint — no auth required, used by monitoring.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Prometheus metrics — no auth required.
	mux.Handle("GET /metrics", promhttp.Handler())

	// Event stream. The literal pattern outranks the /api/ prefix match,
	// so it stays outside the auth wrapper like the health endpoint.
	if hub != nil {
		mux.Handle("GET /api/events", hub)
	}

	// All remaining API routes require auth when a token is configured.
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg.Server.APIToken))

	var rl *handlers.RateLimiter
	if cfg.Server.RateLimit > 0 {
		rl = handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	handler := handlers.RateLimitMiddleware(mux, rl)
	handler = handlers.CORSMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = handlers.LoggingMiddleware(handler)

	return handler
}

// Start initializes and starts the HTTP server. Returns the actual address
// being listened on (useful for testing with port 0). The server shuts
// down gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, eng *engine.CatalogEngine, hub *handlers.EventHub) (string, error) {
	handler := NewRouter(cfg, eng, hub)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
		if hub != nil {
			hub.Stop()
		}
	}()

	return actualAddr, nil
}
