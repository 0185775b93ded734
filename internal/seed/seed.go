// Package seed loads the demo clubs, events and welcome post on first launch.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"schoolhub/internal/apperr"
	"schoolhub/internal/auth"
	"schoolhub/internal/constants"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

const (
	AdminUsername = "admin"
	adminName     = "Admin"
	welcomeText   = "Welcome to the school app! Connect with your peers, join clubs, and stay updated on school events."
)

type UserCreator interface {
	CreateUser(ctx context.Context, params auth.RegisterParams) (*models.Profile, error)
}

type Loader struct {
	store         *store.Store
	users         UserCreator
	adminPassword string
	now           func() time.Time
}

// NewLoader returns a Loader. The admin account is only created when
// adminPassword is non-empty.
func NewLoader(st *store.Store, users UserCreator, adminPassword string) *Loader {
	return &Loader{
		store:         st,
		users:         users,
		adminPassword: adminPassword,
		now:           time.Now,
	}
}

// Load seeds demo data unless it has run before. Collections that already
// hold documents, for example after a legacy import, are left alone. It
// reports whether this call did the seeding.
func (l *Loader) Load(ctx context.Context) (bool, error) {
	firstLaunch := true
	if _, err := l.store.KV().Get(ctx, constants.KeyFirstLaunch, &firstLaunch); err != nil {
		return false, err
	}
	if !firstLaunch {
		return false, nil
	}

	authorID := AdminUsername
	if l.adminPassword != "" {
		admin, err := l.users.CreateUser(ctx, auth.RegisterParams{
			Username: AdminUsername,
			Password: l.adminPassword,
			Name:     adminName,
			Role:     models.RoleAdmin,
		})
		switch {
		case errors.Is(err, apperr.ErrDuplicateUsername):
			slog.Info("admin account already exists", "component", "seed")
		case err != nil:
			return false, fmt.Errorf("creating admin account: %w", err)
		default:
			authorID = admin.ID
		}
	}

	now := l.now().UTC()
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		if err := stageIfEmpty[models.Club](tx, store.Clubs, clubs(now)); err != nil {
			return err
		}
		if err := stageIfEmpty[models.Event](tx, store.Events, events(now)); err != nil {
			return err
		}
		if err := stageIfEmpty[models.Post](tx, store.Posts, posts(now, authorID)); err != nil {
			return err
		}
		return tx.SetKey(constants.KeyFirstLaunch, false)
	}, store.Clubs, store.Events, store.Posts)
	if err != nil {
		return false, fmt.Errorf("loading initial data: %w", err)
	}

	slog.Info("initial data loaded", "component", "seed")
	return true, nil
}

func stageIfEmpty[T any](tx *store.Tx, name store.Name, docs []T) error {
	var existing []T
	if err := tx.Load(name, &existing); err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return tx.Stage(name, docs)
}

func clubs(now time.Time) []models.Club {
	return []models.Club{
		{
			ID:          "club1",
			Name:        "Robotics Club",
			Description: "Build and program robots for competitions and fun projects.",
			MeetingDay:  "Tuesday",
			MeetingTime: "3:30 PM",
			Location:    "Room 203",
			Members:     []string{},
			CreatedAt:   now,
		},
		{
			ID:          "club2",
			Name:        "Art Club",
			Description: "Express yourself through various art forms and techniques.",
			MeetingDay:  "Wednesday",
			MeetingTime: "3:15 PM",
			Location:    "Art Room",
			Members:     []string{},
			CreatedAt:   now,
		},
		{
			ID:          "club3",
			Name:        "Debate Team",
			Description: "Develop public speaking skills and compete in debate tournaments.",
			MeetingDay:  "Thursday",
			MeetingTime: "3:30 PM",
			Location:    "Room 105",
			Members:     []string{},
			CreatedAt:   now,
		},
	}
}

func events(now time.Time) []models.Event {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return []models.Event{
		{
			ID:          "event1",
			Title:       "Homecoming Dance",
			Description: "Annual homecoming dance with music, food, and fun activities.",
			Date:        day.AddDate(0, 0, 10),
			Time:        "7:00 PM - 11:00 PM",
			Location:    "School Gymnasium",
			Attendees:   []string{},
			CreatedAt:   now,
		},
		{
			ID:          "event2",
			Title:       "Science Fair",
			Description: "Showcase your science projects and compete for prizes.",
			Date:        day.AddDate(0, 0, 15),
			Time:        "9:00 AM - 3:00 PM",
			Location:    "School Cafeteria",
			Attendees:   []string{},
			CreatedAt:   now,
		},
		{
			ID:          "event3",
			Title:       "Career Day",
			Description: "Meet professionals from various fields and learn about career opportunities.",
			Date:        day.AddDate(0, 0, 20),
			Time:        "10:00 AM - 2:00 PM",
			Location:    "School Auditorium",
			Attendees:   []string{},
			CreatedAt:   now,
		},
	}
}

func posts(now time.Time, authorID string) []models.Post {
	return []models.Post{
		{
			ID:        "post1",
			Title:     "Welcome",
			Content:   welcomeText,
			AuthorID:  authorID,
			Author:    adminName,
			Timestamp: now,
			LikedBy:   []string{},
			Comments:  []models.Comment{},
		},
	}
}
