// Package gateway assembles the HTTP surface of the Shifa backend:
// knowledge-base CRUD, context retrieval, and the chat endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"shifa/internal/ai"
	"shifa/internal/auth"
	"shifa/internal/config"
	"shifa/internal/embedder"
	"shifa/internal/index"
	"shifa/internal/knowledge"
	"shifa/internal/middleware"
	"shifa/internal/retrieval"
)

// Gateway is the HTTP server for the Shifa backend.
type Gateway struct {
	cfg         *config.Config
	store       *knowledge.Store
	coordinator *retrieval.Coordinator
	provider    ai.Provider

	authMiddleware *middleware.AuthMiddleware
	server         *http.Server
	startTime      time.Time
}

// New creates a gateway over the given components.
func New(cfg *config.Config, store *knowledge.Store, coordinator *retrieval.Coordinator,
	provider ai.Provider, tokens *auth.TokenStorage) *Gateway {
	return &Gateway{
		cfg:            cfg,
		store:          store,
		coordinator:    coordinator,
		provider:       provider,
		authMiddleware: middleware.NewAuthMiddleware(tokens),
		startTime:      time.Now(),
	}
}

// routes builds the request mux. Mutation endpoints are gated by the
// auth middleware; read, query and chat endpoints are open.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", g.handleHealth)

	mux.HandleFunc("GET /api/knowledge", g.handleListEntries)
	mux.HandleFunc("GET /api/knowledge/{id}", g.handleGetEntry)
	mux.Handle("POST /api/knowledge", g.authMiddleware.WrapFunc(g.handleCreateEntry))
	mux.Handle("PUT /api/knowledge/{id}", g.authMiddleware.WrapFunc(g.handleUpdateEntry))
	mux.Handle("DELETE /api/knowledge/{id}", g.authMiddleware.WrapFunc(g.handleDeleteEntry))

	mux.HandleFunc("POST /api/query", g.handleQuery)
	mux.HandleFunc("POST /api/chat", g.handleChat)
	mux.HandleFunc("GET /ws/chat", g.handleWSChat)

	return corsMiddleware(mux)
}

// Start runs the HTTP server until the context is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", g.cfg.Port),
		Handler:      g.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Gateway] Listening on %s", g.server.Addr)
		if err := g.server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("[Gateway] Shutting down")
		return g.server.Shutdown(shutdownCtx)
	}
}

// Handler exposes the full route stack, primarily for tests.
func (g *Gateway) Handler() http.Handler {
	return g.routes()
}

// corsMiddleware allows all origins; the service fronts a public web
// chat widget.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errBadRequest marks client-input failures for writeError.
var errBadRequest = errors.New("bad request")

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, knowledge.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "entry not found")
	case errors.Is(err, embedder.ErrTransient), errors.Is(err, ai.ErrTransient):
		writeJSONError(w, http.StatusBadGateway, "upstream service unavailable: "+err.Error())
	case errors.Is(err, index.ErrDimensionMismatch):
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
