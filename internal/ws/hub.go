package ws

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"schoolhub/internal/metrics"
	"schoolhub/internal/models"
)

const (
	// maxDroppedMessagesBeforeDisconnect is the threshold for disconnecting slow clients
	maxDroppedMessagesBeforeDisconnect = 100
)

var (
	ErrHubStopped      = errors.New("hub stopped")
	ErrRegisterTimeout = errors.New("hub registration timed out")
)

// registerRequest is used for synchronous registration with a callback
type registerRequest struct {
	client *Client
	done   chan struct{}
}

// Hub tracks one live connection per signed-in user and pushes chat updates
// to the participants that are online.
type Hub struct {
	clients      map[*Client]bool
	userClients  map[string]*Client
	registerSync chan registerRequest
	unregister   chan *Client
	disconnect   chan string
	shutdown     chan struct{}
	stopped      chan struct{}
	sequence     int64
	mu           sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		userClients:  make(map[string]*Client),
		registerSync: make(chan registerRequest),
		unregister:   make(chan *Client),
		disconnect:   make(chan string),
		shutdown:     make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				client.CloseSend()
				delete(h.clients, client)
			}
			clear(h.userClients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			slog.Info("shutdown complete", "component", "hub")
			return

		case req := <-h.registerSync:
			h.mu.Lock()
			h.clients[req.client] = true
			req.client.transitionTo(ClientStateIdentified)
			if req.client.user != nil {
				userID := req.client.user.ID
				if old, ok := h.userClients[userID]; ok && old != req.client {
					// Notify old client before closing so it knows not to retry
					h.invalidateLocked(old)
				}
				h.userClients[userID] = req.client
			}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			close(req.done)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if client.user != nil && h.userClients[client.user.ID] == client {
					delete(h.userClients, client.user.ID)
				}
				client.CloseSend()
			}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case userID := <-h.disconnect:
			h.mu.Lock()
			if client, ok := h.userClients[userID]; ok {
				h.invalidateLocked(client)
				delete(h.userClients, userID)
				slog.Info("session revoked", "component", "hub", "user_id", userID)
			}
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Caller must hold the write lock on h.mu.
func (h *Hub) invalidateLocked(client *Client) {
	select {
	case client.send <- &WSMessage{Op: OpInvalidSession, Data: InvalidSessionPayload{Resumable: false}}:
	default:
	}
	client.Close()
	delete(h.clients, client)
}

// Caller must hold at least a read lock on h.mu.
func (h *Hub) sendToClientLocked(client *Client, msg *WSMessage) bool {
	if !client.IsIdentified() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		// Client buffer full - track the drop
		dropped := atomic.AddInt64(&client.DroppedMessages, 1)
		userID := client.getUserID()

		// Log warning periodically (every 10 drops)
		if dropped%10 == 1 {
			slog.Warn("dropped messages for slow client", "component", "hub", "dropped", dropped, "user_id", userID)
		}

		// Disconnect clients that fall too far behind
		if dropped >= maxDroppedMessagesBeforeDisconnect {
			slog.Warn("disconnecting slow client", "component", "hub", "user_id", userID, "dropped", dropped)
			// Close will be handled by the client's pumps
			client.Close()
		}
		return false
	}
}

func (h *Hub) nextSequence() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sequence++
	return h.sequence
}

// Register hands the client to the hub and waits until it can receive
// pushes. A newer connection for the same user replaces the older one.
func (h *Hub) Register(client *Client) error {
	req := registerRequest{client: client, done: make(chan struct{})}
	timer := time.NewTimer(registerTimeout)
	defer timer.Stop()

	select {
	case h.registerSync <- req:
	case <-h.stopped:
		return ErrHubStopped
	case <-timer.C:
		return ErrRegisterTimeout
	}

	select {
	case <-req.done:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-timer.C:
		return ErrRegisterTimeout
	}
}

// Unregister removes the client once its connection has ended.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// DisconnectUser closes the user's live connection, if any, telling the
// client not to reconnect with the same credentials.
func (h *Hub) DisconnectUser(userID string) {
	select {
	case h.disconnect <- userID:
	case <-h.stopped:
	}
}

// SendDispatchToUser sends a DISPATCH message to a specific user. It reports
// whether the message was queued for a live connection.
func (h *Hub) SendDispatchToUser(userID string, eventType string, payload any) bool {
	seq := h.nextSequence()
	msg := &WSMessage{
		Op:   OpDispatch,
		Type: eventType,
		Data: payload,
		Seq:  &seq,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.userClients[userID]; ok {
		return h.sendToClientLocked(client, msg)
	}
	return false
}

// ChatUpdated pushes a newly stored message to every participant of the chat,
// the sender included so their other views stay current.
func (h *Hub) ChatUpdated(chat *models.Chat, message *models.Message) {
	payload := ChatMessagePayload{
		ChatID:       chat.ID,
		Participants: chat.Participants,
		Message:      *message,
		UpdatedAt:    chat.UpdatedAt,
	}
	for _, userID := range chat.Participants {
		if h.SendDispatchToUser(userID, EventChatMessageCreate, payload) {
			metrics.ChatPushes.Inc()
		}
	}
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userClients[userID]
	return ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	close(h.shutdown)
}
