package ws

import (
	"time"

	"schoolhub/internal/models"
)

// Operation codes for WebSocket messages
type OpCode int

// ProtocolVersion is the exact server/client WS protocol version.
// Bump this only for breaking wire-contract changes.
const ProtocolVersion = 1

const (
	// DISPATCH - Events with type field
	OpDispatch OpCode = 0

	// Lifecycle ops (Server -> Client)
	OpHello          OpCode = 1 // Sent on connection
	OpReady          OpCode = 2 // Sent after registration, contains the session
	OpInvalidSession OpCode = 3 // Session replaced or revoked, do not retry
)

// Event types (Server -> Client via DISPATCH)
const (
	EventChatMessageCreate = "CHAT_MESSAGE_CREATE"
)

type WSMessage struct {
	Op   OpCode `json:"op"`
	Type string `json:"t,omitempty"` // Event type (only for DISPATCH)
	Data any    `json:"d,omitempty"`
	Seq  *int64 `json:"s,omitempty"`
}

type HelloPayload struct{}

type ReadyPayload struct {
	ProtocolVersion int        `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	User            *ReadyUser `json:"user"`
}

type ReadyUser struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

func NewReadyUser(user *models.Profile) *ReadyUser {
	if user == nil {
		return nil
	}

	return &ReadyUser{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
	}
}

type InvalidSessionPayload struct {
	Resumable bool `json:"resumable"`
}

// ChatMessagePayload is pushed to every participant of a chat when a message
// is stored.
type ChatMessagePayload struct {
	ChatID       string         `json:"chat_id"`
	Participants []string       `json:"participants"`
	Message      models.Message `json:"message"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
