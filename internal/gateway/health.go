package gateway

import (
	"net/http"
	"time"

	"shifa/internal/version"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Version         string    `json:"version,omitempty"`
	Uptime          string    `json:"uptime"`
	IndexedEntries  int       `json:"indexed_entries"`
	IndexGeneration uint64    `json:"index_generation"`
}

// handleHealth handles GET /health
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   version.Full(),
		Uptime:    time.Since(g.startTime).Round(time.Second).String(),
	}

	if state := g.coordinator.Current(); state != nil {
		resp.IndexedEntries = state.Index.Len()
		resp.IndexGeneration = state.Generation
	}

	writeJSON(w, http.StatusOK, resp)
}
