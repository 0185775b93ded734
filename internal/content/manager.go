// Package content implements the feed, club, event and chat operations. Every
// operation takes the acting user's id explicitly; an empty id or one that
// does not resolve to a stored user fails with apperr.ErrUnauthenticated.
package content

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"schoolhub/internal/apperr"
	"schoolhub/internal/metrics"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

// SessionSyncer refreshes the session snapshot after a user record changes
// inside a unit of work.
type SessionSyncer interface {
	SyncSession(tx *store.Tx, user *models.User) error
}

// Notifier is told about chat messages after they are committed.
type Notifier interface {
	ChatUpdated(chat *models.Chat, message *models.Message)
}

type Manager struct {
	store    *store.Store
	session  SessionSyncer
	notifier Notifier
	policy   *bluemonday.Policy
	now      func() time.Time
}

func NewManager(st *store.Store, session SessionSyncer) *Manager {
	return &Manager{
		store:   st,
		session: session,
		policy:  bluemonday.StrictPolicy(),
		now:     time.Now,
	}
}

// SetNotifier installs the chat notifier. Call it before serving requests.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// Initialize makes sure every collection this manager owns exists.
func (m *Manager) Initialize(ctx context.Context) error {
	for _, name := range []store.Name{store.Posts, store.Clubs, store.Events, store.Chats} {
		if err := m.store.EnsureExists(ctx, name); err != nil {
			return fmt.Errorf("initializing %s: %w", name, err)
		}
	}
	return nil
}

// actor resolves the acting user for read-only operations.
func (m *Manager) actor(ctx context.Context, actorID string) (*models.User, error) {
	if actorID == "" {
		return nil, errUnauthenticated()
	}
	var users []models.User
	if err := m.store.ReadAll(ctx, store.Users, &users); err != nil {
		return nil, err
	}
	_, user, err := findActor(users, actorID)
	return user, err
}

func findActor(users []models.User, actorID string) (int, *models.User, error) {
	if actorID == "" {
		return -1, nil, errUnauthenticated()
	}
	for i := range users {
		if users[i].ID == actorID {
			users[i].Normalize()
			return i, &users[i], nil
		}
	}
	return -1, nil, errUnauthenticated()
}

func errUnauthenticated() error {
	return apperr.New(apperr.KindUnauthenticated, "sign in required")
}

// maxCleanPasses bounds how many layers of entity encoding clean unwraps.
const maxCleanPasses = 8

// clean strips markup from user-supplied text and trims it. Entities are
// decoded to plain text, and the result is sanitized again until it no
// longer changes, so encoded tags cannot survive as markup.
func (m *Manager) clean(s string) string {
	for range maxCleanPasses {
		next := html.UnescapeString(m.policy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(next)
		}
		s = next
	}
	// Still unwrapping: keep the escaped form rather than decoded markup.
	return strings.TrimSpace(m.policy.Sanitize(s))
}

func (m *Manager) cleanText(field, s string, maxLen int, required bool) (string, error) {
	s = m.clean(s)
	if required && s == "" {
		return "", apperr.Validation(field + " is required")
	}
	if utf8.RuneCountInString(s) > maxLen {
		return "", apperr.Validation(fmt.Sprintf("%s must be at most %d characters", field, maxLen))
	}
	return s, nil
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC()
}

func observe(operation string, err error) {
	metrics.Observe(metrics.ContentOperations, operation, err)
}
