package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"shifa/internal/ai"
	"shifa/internal/auth"
	"shifa/internal/config"
	"shifa/internal/database"
	"shifa/internal/embedder"
	"shifa/internal/knowledge"
	"shifa/internal/retrieval"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records the last prompt and returns a fixed reply.
type fakeProvider struct {
	lastPrompt string
	reply      string
	err        error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(ctx context.Context, req *ai.GenerateRequest) (*ai.GenerateResponse, error) {
	p.lastPrompt = req.Prompt
	if p.err != nil {
		return nil, p.err
	}
	return &ai.GenerateResponse{Text: p.reply}, nil
}

type testGateway struct {
	*Gateway
	server   *httptest.Server
	provider *fakeProvider
	token    string
}

func setupGateway(t *testing.T) *testGateway {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := knowledge.NewStore(db)
	coordinator := retrieval.NewCoordinator(store, embedder.NewHashing(256), db)
	tokens := auth.NewTokenStorage(db)

	resp, err := tokens.CreateToken(auth.CreateTokenRequest{ClientName: "test-client"})
	require.NoError(t, err)

	provider := &fakeProvider{reply: "a supportive reply"}
	g := New(config.Default(), store, coordinator, provider, tokens)

	server := httptest.NewServer(g.Handler())
	t.Cleanup(server.Close)

	return &testGateway{Gateway: g, server: server, provider: provider, token: resp.Token}
}

// doJSON issues a JSON request against the test server. An empty token
// leaves the request unauthenticated.
func (tg *testGateway) doJSON(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, tg.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (tg *testGateway) createEntry(t *testing.T, title, content string) int64 {
	t.Helper()
	resp := tg.doJSON(t, http.MethodPost, "/api/knowledge", tg.token,
		map[string]string{"title": title, "content": content})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &body)
	return body.ID
}

func TestGateway_CreateRequiresAuth(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPost, "/api/knowledge", "",
		map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	// Nothing was written.
	list := tg.doJSON(t, http.MethodGet, "/api/knowledge", "", nil)
	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, list, &body)
	assert.Zero(t, body.Count)
}

func TestGateway_CreateRejectsInvalidToken(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPost, "/api/knowledge", "shifa_not_a_real_token",
		map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGateway_CreateAndGet(t *testing.T) {
	tg := setupGateway(t)

	id := tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")

	resp := tg.doJSON(t, http.MethodGet, fmt.Sprintf("/api/knowledge/%d", id), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entry knowledge.Entry
	decodeBody(t, resp, &entry)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "Ruqyah", entry.Title)
}

func TestGateway_CreateValidation(t *testing.T) {
	tg := setupGateway(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing title", map[string]string{"content": "c"}},
		{"missing content", map[string]string{"title": "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tg.doJSON(t, http.MethodPost, "/api/knowledge", tg.token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGateway_ListEntries(t *testing.T) {
	tg := setupGateway(t)

	first := tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")
	second := tg.createEntry(t, "Sihir", "Sihir refers to black magic in Islamic belief.")

	resp := tg.doJSON(t, http.MethodGet, "/api/knowledge", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []knowledge.Entry `json:"entries"`
		Count   int               `json:"count"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, first, body.Entries[0].ID)
	assert.Equal(t, second, body.Entries[1].ID)
}

func TestGateway_UpdateMissingEntry(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPut, "/api/knowledge/999", tg.token,
		map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_DeleteEntry(t *testing.T) {
	tg := setupGateway(t)

	id := tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")

	resp := tg.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/knowledge/%d", id), tg.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = tg.doJSON(t, http.MethodGet, fmt.Sprintf("/api/knowledge/%d", id), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = tg.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/knowledge/%d", id), tg.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_InvalidEntryID(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodGet, "/api/knowledge/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_Query(t *testing.T) {
	tg := setupGateway(t)

	tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")
	tg.createEntry(t, "Sihir", "Sihir refers to black magic in Islamic belief.")

	resp := tg.doJSON(t, http.MethodPost, "/api/query", "",
		map[string]interface{}{"query": "What is ruqyah?", "top_k": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Context string `json:"context"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Ruqyah is Quranic recitation for healing.", body.Context)
}

func TestGateway_QueryEmptyStore(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPost, "/api/query", "",
		map[string]interface{}{"query": "anything"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Context string `json:"context"`
	}
	decodeBody(t, resp, &body)
	assert.Empty(t, body.Context)
}

func TestGateway_QueryValidation(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPost, "/api/query", "",
		map[string]interface{}{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_Chat(t *testing.T) {
	tg := setupGateway(t)
	tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")

	resp := tg.doJSON(t, http.MethodPost, "/api/chat", "",
		map[string]string{"message": "What is ruqyah?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reply string `json:"reply"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "a supportive reply", body.Reply)

	// The prompt carries the retrieved context and the question.
	assert.Contains(t, tg.provider.lastPrompt, "Ruqyah is Quranic recitation for healing.")
	assert.Contains(t, tg.provider.lastPrompt, "What is ruqyah?")
}

func TestGateway_ChatWithoutKnowledge(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPost, "/api/chat", "",
		map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// No context available: the bare message goes through.
	assert.Equal(t, "hello", tg.provider.lastPrompt)
}

func TestGateway_ChatEmptyMessage(t *testing.T) {
	tg := setupGateway(t)

	resp := tg.doJSON(t, http.MethodPost, "/api/chat", "", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_ChatProviderDown(t *testing.T) {
	tg := setupGateway(t)
	tg.provider.err = fmt.Errorf("%w: API error 503", ai.ErrTransient)

	resp := tg.doJSON(t, http.MethodPost, "/api/chat", "",
		map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGateway_Health(t *testing.T) {
	tg := setupGateway(t)
	tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")

	resp := tg.doJSON(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.IndexedEntries)
	assert.Equal(t, uint64(1), body.IndexGeneration)
}

func TestGateway_CORSPreflight(t *testing.T) {
	tg := setupGateway(t)

	req, err := http.NewRequest(http.MethodOptions, tg.server.URL+"/api/chat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGateway_WSChat(t *testing.T) {
	tg := setupGateway(t)
	tg.createEntry(t, "Ruqyah", "Ruqyah is Quranic recitation for healing.")

	wsURL := "ws" + strings.TrimPrefix(tg.server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "What is ruqyah?"}))

	var resp struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Empty(t, resp.Error)
	assert.Equal(t, "a supportive reply", resp.Reply)

	// The connection survives an error round.
	resp = struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}{}
	require.NoError(t, conn.WriteJSON(map[string]string{"message": ""}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Reply)

	resp.Error = ""
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "What is ruqyah?"}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "a supportive reply", resp.Reply)
}
