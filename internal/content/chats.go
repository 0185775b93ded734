package content

import (
	"context"
	"log/slog"
	"slices"

	"schoolhub/internal/apperr"
	"schoolhub/internal/constants"
	"schoolhub/internal/db"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

// Chats returns the chats the actor takes part in, most recently active
// first.
func (m *Manager) Chats(ctx context.Context, actorID string) ([]models.Chat, error) {
	user, err := m.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var chats []models.Chat
	if err := m.store.ReadAll(ctx, store.Chats, &chats); err != nil {
		return nil, err
	}

	mine := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		if c.HasParticipant(user.ID) {
			c.Normalize()
			mine = append(mine, c)
		}
	}
	slices.SortStableFunc(mine, func(a, b models.Chat) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return mine, nil
}

// Chat returns one chat. Only participants may read it.
func (m *Manager) Chat(ctx context.Context, actorID, chatID string) (*models.Chat, error) {
	user, err := m.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var chats []models.Chat
	if err := m.store.ReadAll(ctx, store.Chats, &chats); err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(chats, func(c models.Chat) bool { return c.ID == chatID })
	if chatID == "" || idx < 0 {
		return nil, apperr.NotFound("chat not found")
	}
	chat := chats[idx]
	if !chat.HasParticipant(user.ID) {
		return nil, apperr.Forbidden("not a participant in this chat")
	}
	chat.Normalize()
	return &chat, nil
}

// CreateChat returns the two-party chat between the actor and recipient,
// creating it on first contact.
func (m *Manager) CreateChat(ctx context.Context, actorID, recipientID string) (*models.Chat, error) {
	chat, err := m.createChat(ctx, actorID, recipientID)
	observe("create_chat", err)
	return chat, err
}

func (m *Manager) createChat(ctx context.Context, actorID, recipientID string) (*models.Chat, error) {
	id, err := db.GenerateID("chat")
	if err != nil {
		return nil, err
	}

	var chat models.Chat
	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}
		if recipientID == user.ID {
			return apperr.Validation("cannot start a chat with yourself")
		}
		ridx := slices.IndexFunc(users, func(u models.User) bool { return u.ID == recipientID })
		if recipientID == "" || ridx < 0 {
			return apperr.NotFound("recipient not found")
		}
		recipient := users[ridx]

		var chats []models.Chat
		if err := tx.Load(store.Chats, &chats); err != nil {
			return err
		}
		if idx := slices.IndexFunc(chats, func(c models.Chat) bool { return c.IsBetween(user.ID, recipient.ID) }); idx >= 0 {
			chat = chats[idx]
			chat.Normalize()
			return nil
		}

		now := m.timestamp()
		chat = models.Chat{
			ID:           id,
			Participants: []string{user.ID, recipient.ID},
			ParticipantDetails: []models.ParticipantDetail{
				{ID: user.ID, Name: user.Name},
				{ID: recipient.ID, Name: recipient.Name},
			},
			Messages:  []models.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Stage(store.Chats, append(chats, chat))
	}, store.Chats, store.Users)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SendMessage appends a message to a chat the actor takes part in and bumps
// the chat's updatedAt. Participants are notified once the message is stored.
func (m *Manager) SendMessage(ctx context.Context, actorID, chatID, content string) (*models.Message, error) {
	content, err := m.cleanText("message", content, constants.MaxMessageLength, true)
	if err != nil {
		observe("send_message", err)
		return nil, err
	}
	id, err := db.GenerateID("msg")
	if err != nil {
		return nil, err
	}

	var chat models.Chat
	var message models.Message
	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}

		var chats []models.Chat
		if err := tx.Load(store.Chats, &chats); err != nil {
			return err
		}
		idx := slices.IndexFunc(chats, func(c models.Chat) bool { return c.ID == chatID })
		if chatID == "" || idx < 0 {
			return apperr.NotFound("chat not found")
		}
		c := &chats[idx]
		if !c.HasParticipant(user.ID) {
			return apperr.Forbidden("not a participant in this chat")
		}
		c.Normalize()

		message = models.Message{
			ID:        id,
			Content:   content,
			SenderID:  user.ID,
			Timestamp: m.timestamp(),
		}
		c.Messages = append(c.Messages, message)
		c.UpdatedAt = message.Timestamp
		chat = *c
		return tx.Stage(store.Chats, chats)
	}, store.Chats, store.Users)
	observe("send_message", err)
	if err != nil {
		return nil, err
	}

	if m.notifier != nil {
		m.notifier.ChatUpdated(&chat, &message)
		slog.Debug("chat update dispatched", "component", "content", "chat_id", chat.ID, "message_id", message.ID)
	}
	return &message, nil
}
