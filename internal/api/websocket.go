package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"schoolhub/internal/ws"
)

type WebSocketHandler struct {
	hub            *ws.Hub
	auth           *AuthMiddleware
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, auth *AuthMiddleware, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		auth:           auth,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originAllowed(origin, h.allowedOrigins)
}

// GET /ws?token=... upgrades the connection for the signed-in user. Chat
// updates for that user are pushed over it until the session ends.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		unauthorized(w, "Missing token")
		return
	}

	userID, ok := h.auth.authenticate(w, r, token)
	if !ok {
		return
	}

	profile, err := h.auth.sessions.CurrentUser(r.Context())
	if err != nil || profile == nil || profile.ID != userID {
		unauthorized(w, "Session is no longer active")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "component", "api", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, profile)
	client.SendHello()
	if err := h.hub.Register(client); err != nil {
		slog.Error("websocket registration failed", "component", "api", "user_id", userID, "error", err)
		client.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
