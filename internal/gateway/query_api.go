package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"shifa/internal/ai"
)

// handleQuery handles POST /api/query
// Request: {"query": "What is ruqyah?", "top_k": 3}
// Response: {"context": "..."}
func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = g.cfg.Retrieval.TopK
	}

	context, err := g.coordinator.Retrieve(r.Context(), req.Query, topK)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"context": context})
}

// handleChat handles POST /api/chat
// Request: {"message": "..."}
// Response: {"reply": "..."}
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	reply, err := g.answer(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// answer runs the full RAG flow for one user message: retrieve context
// for the question, assemble the prompt, call the generation provider.
func (g *Gateway) answer(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: empty message", errBadRequest)
	}

	kbContext, err := g.coordinator.Retrieve(ctx, message, g.cfg.Retrieval.TopK)
	if err != nil {
		return "", err
	}

	resp, err := g.provider.Generate(ctx, &ai.GenerateRequest{
		Prompt:       buildPrompt(kbContext, message),
		MaxNewTokens: g.cfg.Generation.MaxNewTokens,
		Temperature:  g.cfg.Generation.Temperature,
	})
	if err != nil {
		return "", err
	}

	return resp.Text, nil
}

// buildPrompt assembles the generation prompt. An empty context means
// no retrieval was available; the question goes through on its own.
func buildPrompt(kbContext, message string) string {
	if kbContext == "" {
		return message
	}
	var b strings.Builder
	b.WriteString("Answer the question using the context below.\n\nContext:\n")
	b.WriteString(kbContext)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(message)
	return b.String()
}
