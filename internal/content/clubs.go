package content

import (
	"context"
	"slices"
	"strings"

	"schoolhub/internal/apperr"
	"schoolhub/internal/db"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
	"schoolhub/internal/validation"
)

type ClubParams struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=1000"`
	MeetingDay  string `json:"meetingDay" validate:"max=32"`
	MeetingTime string `json:"meetingTime" validate:"max=32"`
	Location    string `json:"location" validate:"max=120"`
}

func (m *Manager) Clubs(ctx context.Context, actorID string) ([]models.Club, error) {
	if _, err := m.actor(ctx, actorID); err != nil {
		return nil, err
	}
	var clubs []models.Club
	if err := m.store.ReadAll(ctx, store.Clubs, &clubs); err != nil {
		return nil, err
	}
	for i := range clubs {
		clubs[i].Normalize()
	}
	return nonNilSlice(clubs), nil
}

// CreateClub adds a club with the actor as its first member.
func (m *Manager) CreateClub(ctx context.Context, actorID string, params ClubParams) (*models.Club, error) {
	club, err := m.createClub(ctx, actorID, params)
	observe("create_club", err)
	return club, err
}

func (m *Manager) createClub(ctx context.Context, actorID string, params ClubParams) (*models.Club, error) {
	params.Name = m.clean(params.Name)
	params.Description = m.clean(params.Description)
	params.MeetingDay = strings.TrimSpace(params.MeetingDay)
	params.MeetingTime = strings.TrimSpace(params.MeetingTime)
	params.Location = m.clean(params.Location)
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	id, err := db.GenerateID("club")
	if err != nil {
		return nil, err
	}

	var club models.Club
	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}

		club = models.Club{
			ID:          id,
			Name:        params.Name,
			Description: params.Description,
			MeetingDay:  params.MeetingDay,
			MeetingTime: params.MeetingTime,
			Location:    params.Location,
			Members:     []string{user.ID},
			CreatedBy:   user.ID,
			CreatedAt:   m.timestamp(),
		}

		var clubs []models.Club
		if err := tx.Load(store.Clubs, &clubs); err != nil {
			return err
		}
		if err := tx.Stage(store.Clubs, append(clubs, club)); err != nil {
			return err
		}

		user.Clubs, _ = models.AddID(user.Clubs, club.ID)
		return m.stageUser(tx, users, user)
	}, store.Clubs, store.Users)
	if err != nil {
		return nil, err
	}
	return &club, nil
}

// JoinClub adds the actor to the club and the club to the actor's clubs.
// Joining a club twice leaves both sides unchanged.
func (m *Manager) JoinClub(ctx context.Context, actorID, clubID string) (*models.Club, error) {
	club, err := m.setClubMembership(ctx, actorID, clubID, true)
	observe("join_club", err)
	return club, err
}

// LeaveClub is the inverse of JoinClub. Leaving a club the actor is not a
// member of is a no-op.
func (m *Manager) LeaveClub(ctx context.Context, actorID, clubID string) (*models.Club, error) {
	club, err := m.setClubMembership(ctx, actorID, clubID, false)
	observe("leave_club", err)
	return club, err
}

func (m *Manager) setClubMembership(ctx context.Context, actorID, clubID string, member bool) (*models.Club, error) {
	var club models.Club
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}

		var clubs []models.Club
		if err := tx.Load(store.Clubs, &clubs); err != nil {
			return err
		}
		idx := slices.IndexFunc(clubs, func(c models.Club) bool { return c.ID == clubID })
		if clubID == "" || idx < 0 {
			return apperr.NotFound("club not found")
		}
		c := &clubs[idx]
		c.Normalize()

		var clubChanged, userChanged bool
		if member {
			c.Members, clubChanged = models.AddID(c.Members, user.ID)
			user.Clubs, userChanged = models.AddID(user.Clubs, c.ID)
		} else {
			c.Members, clubChanged = models.RemoveID(c.Members, user.ID)
			user.Clubs, userChanged = models.RemoveID(user.Clubs, c.ID)
		}
		club = *c

		if clubChanged {
			if err := tx.Stage(store.Clubs, clubs); err != nil {
				return err
			}
		}
		if userChanged {
			return m.stageUser(tx, users, user)
		}
		return nil
	}, store.Clubs, store.Users)
	if err != nil {
		return nil, err
	}
	return &club, nil
}

// stageUser writes users back after user, an element of users, was changed,
// and refreshes the session if user is signed in.
func (m *Manager) stageUser(tx *store.Tx, users []models.User, user *models.User) error {
	now := m.timestamp()
	user.UpdatedAt = &now
	if err := tx.Stage(store.Users, users); err != nil {
		return err
	}
	if m.session == nil {
		return nil
	}
	return m.session.SyncSession(tx, user)
}
