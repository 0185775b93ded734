package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"schoolhub/internal/constants"
	"schoolhub/internal/models"
)

// ClientState represents the lifecycle state of a WebSocket client
type ClientState int32

const (
	ClientStateConnected  ClientState = iota // WS connected, not yet registered
	ClientStateIdentified                    // Registered with the hub, receiving pushes
	ClientStateClosing                       // Shutdown initiated
	ClientStateClosed                        // Terminal
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 15 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 10 * time.Second

	// Maximum message size allowed from peer. Clients only send control frames.
	maxMessageSize = 4096

	// Timeout for hub registration
	registerTimeout = 5 * time.Second
)

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan *WSMessage
	connCloseOnce sync.Once

	state atomic.Int32

	user      *models.Profile
	sessionID string

	// DroppedMessages tracks how many messages have been dropped due to full buffer
	DroppedMessages int64
}

func NewClient(hub *Hub, conn *websocket.Conn, user *models.Profile) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan *WSMessage, constants.WSClientSendBufferSize),
		user:      user,
		sessionID: uuid.NewString(),
	}
	c.state.Store(int32(ClientStateConnected))
	return c
}

// Close performs cleanup for the client, ensuring it only happens once
func (c *Client) Close() {
	if !c.transitionTo(ClientStateClosing) {
		// Already closing/closed, but still ensure conn is closed
		c.connCloseOnce.Do(c.closeConn)
		return
	}
	c.connCloseOnce.Do(c.closeConn)
	c.transitionTo(ClientStateClosed)
}

func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// ReadPump keeps the read side alive so control frames are processed. Any
// data frame is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "component", "ws", "user_id", c.getUserID(), "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("ignoring malformed client frame", "component", "ws", "user_id", c.getUserID(), "error", err)
			continue
		}
		slog.Debug("ignoring client frame", "component", "ws", "user_id", c.getUserID(), "op", msg.Op, "type", msg.Type)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.IsClosed() {
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Warn("websocket write error", "component", "ws", "user_id", c.getUserID(), "error", err)
				return
			}

		case <-ticker.C:
			if c.IsClosed() {
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// getUserID returns the user ID or "unknown" if not set
func (c *Client) getUserID() string {
	if c.user != nil {
		return c.user.ID
	}
	return "unknown"
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// SendHello queues the HELLO and READY messages. Call before Register so
// they precede any dispatch.
func (c *Client) SendHello() {
	c.send <- &WSMessage{Op: OpHello, Data: HelloPayload{}}
	c.send <- &WSMessage{
		Op: OpReady,
		Data: ReadyPayload{
			ProtocolVersion: ProtocolVersion,
			SessionID:       c.sessionID,
			User:            NewReadyUser(c.user),
		},
	}
}

// State returns the current client state
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// IsIdentified returns true if the client is in the identified state
func (c *Client) IsIdentified() bool {
	return c.State() == ClientStateIdentified
}

// IsClosed returns true if the client is closing or closed
func (c *Client) IsClosed() bool {
	state := c.State()
	return state == ClientStateClosing || state == ClientStateClosed
}

// isValidClientTransition checks if a state transition is valid
func isValidClientTransition(from, to ClientState) bool {
	switch from {
	case ClientStateConnected:
		return to == ClientStateIdentified || to == ClientStateClosing
	case ClientStateIdentified:
		return to == ClientStateClosing
	case ClientStateClosing:
		return to == ClientStateClosed
	case ClientStateClosed:
		return false
	}
	return false
}

// transitionTo atomically transitions to a new state if valid
func (c *Client) transitionTo(newState ClientState) bool {
	for {
		current := ClientState(c.state.Load())
		if !isValidClientTransition(current, newState) {
			return false
		}
		if c.state.CompareAndSwap(int32(current), int32(newState)) {
			return true
		}
	}
}

// CloseSend closes the send channel (called by hub during cleanup)
func (c *Client) CloseSend() {
	if c.transitionTo(ClientStateClosing) {
		close(c.send)
		c.connCloseOnce.Do(c.closeConn)
		c.transitionTo(ClientStateClosed)
	}
}
