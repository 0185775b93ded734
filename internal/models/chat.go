package models

import (
	"slices"
	"time"
)

type Chat struct {
	ID                 string              `json:"id"`
	Participants       []string            `json:"participants"`
	ParticipantDetails []ParticipantDetail `json:"participantDetails"`
	Messages           []Message           `json:"messages"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// ParticipantDetail is a display-name snapshot taken when the chat is created.
type ParticipantDetail struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Chat) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// IsBetween reports whether the chat is a two-party chat between exactly a
// and b, in either order.
func (c *Chat) IsBetween(a, b string) bool {
	if len(c.Participants) != 2 {
		return false
	}
	return (c.Participants[0] == a && c.Participants[1] == b) ||
		(c.Participants[0] == b && c.Participants[1] == a)
}

func (c *Chat) Normalize() {
	c.Participants = nonNil(c.Participants)
	if c.ParticipantDetails == nil {
		c.ParticipantDetails = []ParticipantDetail{}
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
}
