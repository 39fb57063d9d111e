package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// entryRequest is the create/update payload for a knowledge entry.
type entryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handleCreateEntry handles POST /api/knowledge
// Request: {"title": "...", "content": "..."}
// Response: {"id": 7}
func (g *Gateway) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	id, err := g.coordinator.AddEntry(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// handleListEntries handles GET /api/knowledge
// Response: {"entries": [...], "count": n}
func (g *Gateway) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := g.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry handles GET /api/knowledge/{id}
func (g *Gateway) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, err := g.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleUpdateEntry handles PUT /api/knowledge/{id}
func (g *Gateway) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Title == "" || req.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	if err := g.coordinator.UpdateEntry(r.Context(), id, req.Title, req.Content); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleDeleteEntry handles DELETE /api/knowledge/{id}
func (g *Gateway) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	if err := g.coordinator.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// entryID parses the {id} path segment, writing a 400 on failure.
func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid entry id")
		return 0, false
	}
	return id, true
}
