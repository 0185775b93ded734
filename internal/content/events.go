package content

import (
	"context"
	"slices"
	"strings"
	"time"

	"schoolhub/internal/apperr"
	"schoolhub/internal/db"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
	"schoolhub/internal/validation"
)

type EventParams struct {
	Title       string    `json:"title" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=2000"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time" validate:"max=64"`
	Location    string    `json:"location" validate:"max=120"`
}

func (m *Manager) Events(ctx context.Context, actorID string) ([]models.Event, error) {
	if _, err := m.actor(ctx, actorID); err != nil {
		return nil, err
	}
	var events []models.Event
	if err := m.store.ReadAll(ctx, store.Events, &events); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Normalize()
	}
	return nonNilSlice(events), nil
}

// CreateEvent adds an event. Only admins may create events; the creator is
// recorded as attending.
func (m *Manager) CreateEvent(ctx context.Context, actorID string, params EventParams) (*models.Event, error) {
	event, err := m.createEvent(ctx, actorID, params)
	observe("create_event", err)
	return event, err
}

func (m *Manager) createEvent(ctx context.Context, actorID string, params EventParams) (*models.Event, error) {
	params.Title = m.clean(params.Title)
	params.Description = m.clean(params.Description)
	params.Time = strings.TrimSpace(params.Time)
	params.Location = m.clean(params.Location)
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	if params.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	id, err := db.GenerateID("event")
	if err != nil {
		return nil, err
	}

	var event models.Event
	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}
		if !user.IsAdmin() {
			return apperr.Forbidden("only admins can create events")
		}

		event = models.Event{
			ID:          id,
			Title:       params.Title,
			Description: params.Description,
			Date:        params.Date.UTC(),
			Time:        params.Time,
			Location:    params.Location,
			Attendees:   []string{user.ID},
			CreatedBy:   user.ID,
			CreatedAt:   m.timestamp(),
		}

		var events []models.Event
		if err := tx.Load(store.Events, &events); err != nil {
			return err
		}
		if err := tx.Stage(store.Events, append(events, event)); err != nil {
			return err
		}

		user.RSVPs, _ = models.AddID(user.RSVPs, event.ID)
		return m.stageUser(tx, users, user)
	}, store.Events, store.Users)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// RsvpEvent records the actor as attending. Repeating the call changes
// nothing.
func (m *Manager) RsvpEvent(ctx context.Context, actorID, eventID string) (*models.Event, error) {
	event, err := m.setAttendance(ctx, actorID, eventID, true)
	observe("rsvp_event", err)
	return event, err
}

func (m *Manager) CancelRsvp(ctx context.Context, actorID, eventID string) (*models.Event, error) {
	event, err := m.setAttendance(ctx, actorID, eventID, false)
	observe("cancel_rsvp", err)
	return event, err
}

func (m *Manager) setAttendance(ctx context.Context, actorID, eventID string, attending bool) (*models.Event, error) {
	var event models.Event
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}

		var events []models.Event
		if err := tx.Load(store.Events, &events); err != nil {
			return err
		}
		idx := slices.IndexFunc(events, func(e models.Event) bool { return e.ID == eventID })
		if eventID == "" || idx < 0 {
			return apperr.NotFound("event not found")
		}
		e := &events[idx]
		e.Normalize()

		var eventChanged, userChanged bool
		if attending {
			e.Attendees, eventChanged = models.AddID(e.Attendees, user.ID)
			user.RSVPs, userChanged = models.AddID(user.RSVPs, e.ID)
		} else {
			e.Attendees, eventChanged = models.RemoveID(e.Attendees, user.ID)
			user.RSVPs, userChanged = models.RemoveID(user.RSVPs, e.ID)
		}
		event = *e

		if eventChanged {
			if err := tx.Stage(store.Events, events); err != nil {
				return err
			}
		}
		if userChanged {
			return m.stageUser(tx, users, user)
		}
		return nil
	}, store.Events, store.Users)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
