package gateway

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsChatRequest is one inbound chat message on the websocket.
type wsChatRequest struct {
	Message string `json:"message"`
}

// wsChatResponse is one outbound reply on the websocket.
type wsChatResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Same posture as the CORS layer: the public chat widget may be
	// served from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWSChat handles GET /ws/chat. Each inbound JSON message runs
// one RAG chat round and gets one JSON reply; the connection stays
// open for the next question.
func (g *Gateway) handleWSChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[Gateway] WebSocket chat connected: %s", r.RemoteAddr)

	for {
		var req wsChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Gateway] WebSocket read error: %v", err)
			}
			return
		}

		reply, err := g.answer(r.Context(), req.Message)
		if err != nil {
			if writeErr := conn.WriteJSON(wsChatResponse{Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(wsChatResponse{Reply: reply}); err != nil {
			return
		}
	}
}
