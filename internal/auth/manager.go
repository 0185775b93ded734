package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"schoolhub/internal/apperr"
	"schoolhub/internal/constants"
	"schoolhub/internal/db"
	"schoolhub/internal/metrics"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
	"schoolhub/internal/validation"
)

// Manager owns the users collection and the device session. The session is
// a Profile snapshot under the currentUser key; it is only ever written while
// the users collection is locked, so it cannot interleave with a write to the
// record it mirrors.
type Manager struct {
	store  *store.Store
	hasher *Hasher
	now    func() time.Time
}

func NewManager(st *store.Store, hasher *Hasher) *Manager {
	return &Manager{
		store:  st,
		hasher: hasher,
		now:    time.Now,
	}
}

type RegisterParams struct {
	Username string      `json:"username" validate:"required,username"`
	Password string      `json:"password" validate:"required,min=6,max=72"`
	Name     string      `json:"name" validate:"required,max=64"`
	Email    string      `json:"email" validate:"omitempty,email"`
	Bio      string      `json:"bio" validate:"max=280"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=student admin"`
}

// UpdateParams lists the profile fields to change. Nil fields are left as
// they are; an empty password is ignored.
type UpdateParams struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Bio      *string `json:"bio"`
}

// Initialize makes sure the users collection exists and is a valid array.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.store.EnsureExists(ctx, store.Users)
}

// Register creates an account and signs the device in as that user.
func (m *Manager) Register(ctx context.Context, params RegisterParams) (*models.Profile, error) {
	profile, err := m.create(ctx, params, true)
	metrics.Observe(metrics.AuthAttempts, "register", err)
	return profile, err
}

// CreateUser creates an account without touching the session.
func (m *Manager) CreateUser(ctx context.Context, params RegisterParams) (*models.Profile, error) {
	return m.create(ctx, params, false)
}

func (m *Manager) create(ctx context.Context, params RegisterParams, startSession bool) (*models.Profile, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	id, err := db.GenerateID("user")
	if err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = models.RoleStudent
	}
	user := models.User{
		ID:           id,
		Username:     params.Username,
		PasswordHash: hash,
		Name:         params.Name,
		Email:        params.Email,
		Bio:          params.Bio,
		Role:         role,
		CreatedAt:    m.now().UTC(),
	}
	user.Normalize()

	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		if findByUsername(users, user.Username, "") != nil {
			return apperr.New(apperr.KindDuplicateUsername, "username already exists")
		}
		if err := tx.Stage(store.Users, append(users, user)); err != nil {
			return err
		}
		if startSession {
			return tx.SetKey(constants.KeyCurrentUser, user.Profile())
		}
		return nil
	}, store.Users)
	if err != nil {
		return nil, err
	}

	slog.Info("user created", "component", "auth", "user_id", user.ID, "role", user.Role)
	return user.Profile(), nil
}

// Login checks the credentials case-insensitively on the username and signs
// the device in.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Profile, error) {
	profile, err := m.login(ctx, username, password)
	metrics.Observe(metrics.AuthAttempts, "login", err)
	return profile, err
}

func (m *Manager) login(ctx context.Context, username, password string) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	var profile *models.Profile
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		user := findByUsername(users, username, "")
		if user == nil || !m.hasher.Compare(user.PasswordHash, password) {
			return apperr.New(apperr.KindInvalidCredentials, "invalid username or password")
		}
		profile = user.Profile()
		return tx.SetKey(constants.KeyCurrentUser, profile)
	}, store.Users)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Update(ctx, func(tx *store.Tx) error {
		return tx.RemoveKey(constants.KeyCurrentUser)
	}, store.Users)
}

// CurrentUser returns the session snapshot, or nil when nobody is signed in.
// The snapshot is not checked against the users collection. A snapshot that
// cannot be decoded is cleared.
func (m *Manager) CurrentUser(ctx context.Context) (*models.Profile, error) {
	raw, found, err := m.store.KV().GetRaw(ctx, constants.KeyCurrentUser)
	if err != nil || !found {
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil || profile.ID == "" {
		slog.Warn("session snapshot is unreadable, clearing", "component", "auth", "error", err)
		return nil, m.Logout(ctx)
	}
	return &profile, nil
}

func (m *Manager) UpdateProfile(ctx context.Context, userID string, params UpdateParams) (*models.Profile, error) {
	if err := validateUpdate(&params); err != nil {
		return nil, err
	}

	var hash string
	if params.Password != nil && *params.Password != "" {
		var err error
		if hash, err = m.hasher.Hash(*params.Password); err != nil {
			return nil, err
		}
	}

	var updated *models.User
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		idx := indexOf(users, userID)
		if idx < 0 {
			return apperr.NotFound("user not found")
		}

		user := &users[idx]
		if params.Username != nil && *params.Username != user.Username {
			if findByUsername(users, *params.Username, user.ID) != nil {
				return apperr.New(apperr.KindDuplicateUsername, "username already exists")
			}
			user.Username = *params.Username
		}
		if params.Name != nil {
			user.Name = *params.Name
		}
		if params.Email != nil {
			user.Email = *params.Email
		}
		if params.Bio != nil {
			user.Bio = *params.Bio
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		now := m.now().UTC()
		user.UpdatedAt = &now
		user.Normalize()

		if err := tx.Stage(store.Users, users); err != nil {
			return err
		}
		updated = user
		return m.SyncSession(tx, user)
	}, store.Users)
	if err != nil {
		return nil, err
	}
	return updated.Profile(), nil
}

func validateUpdate(params *UpdateParams) error {
	if params.Username != nil {
		trimmed := strings.TrimSpace(*params.Username)
		params.Username = &trimmed
		if err := validation.Var("username", trimmed, "required,username"); err != nil {
			return err
		}
	}
	if params.Name != nil {
		trimmed := strings.TrimSpace(*params.Name)
		params.Name = &trimmed
		if err := validation.Var("name", trimmed, "required,max=64"); err != nil {
			return err
		}
	}
	if params.Email != nil {
		trimmed := strings.TrimSpace(*params.Email)
		params.Email = &trimmed
		if err := validation.Var("email", trimmed, "omitempty,email"); err != nil {
			return err
		}
	}
	if params.Bio != nil {
		if err := validation.Var("bio", *params.Bio, "max=280"); err != nil {
			return err
		}
	}
	if params.Password != nil && *params.Password != "" {
		if err := validation.Var("password", *params.Password, "min=6,max=72"); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAccount removes the user and every reference other documents hold to
// them: club membership, event attendance, post likes and friend lists. The
// session is cleared when it belonged to that user.
func (m *Manager) DeleteAccount(ctx context.Context, userID string) error {
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		idx := indexOf(users, userID)
		if idx < 0 {
			return apperr.NotFound("user not found")
		}
		users = slices.Delete(users, idx, idx+1)
		for i := range users {
			users[i].Friends, _ = models.RemoveID(users[i].Friends, userID)
		}
		if err := tx.Stage(store.Users, users); err != nil {
			return err
		}

		if err := removeReferences(tx, userID); err != nil {
			return err
		}

		var session models.Profile
		found, err := tx.GetKey(constants.KeyCurrentUser, &session)
		if err != nil || (found && session.ID == userID) {
			return tx.RemoveKey(constants.KeyCurrentUser)
		}
		return nil
	}, store.Users, store.Clubs, store.Events, store.Posts)
	if err != nil {
		return err
	}

	slog.Info("user deleted", "component", "auth", "user_id", userID)
	return nil
}

func removeReferences(tx *store.Tx, userID string) error {
	var clubs []models.Club
	if err := tx.Load(store.Clubs, &clubs); err != nil {
		return err
	}
	for i := range clubs {
		clubs[i].Members, _ = models.RemoveID(clubs[i].Members, userID)
	}
	if err := tx.Stage(store.Clubs, clubs); err != nil {
		return err
	}

	var events []models.Event
	if err := tx.Load(store.Events, &events); err != nil {
		return err
	}
	for i := range events {
		events[i].Attendees, _ = models.RemoveID(events[i].Attendees, userID)
	}
	if err := tx.Stage(store.Events, events); err != nil {
		return err
	}

	var posts []models.Post
	if err := tx.Load(store.Posts, &posts); err != nil {
		return err
	}
	for i := range posts {
		posts[i].LikedBy, _ = models.RemoveID(posts[i].LikedBy, userID)
		posts[i].Normalize()
	}
	return tx.Stage(store.Posts, posts)
}

func (m *Manager) GetUser(ctx context.Context, userID string) (*models.Profile, error) {
	var users []models.User
	if err := m.store.ReadAll(ctx, store.Users, &users); err != nil {
		return nil, err
	}
	idx := indexOf(users, userID)
	if idx < 0 {
		return nil, apperr.NotFound("user not found")
	}
	return users[idx].Profile(), nil
}

func (m *Manager) ListUsers(ctx context.Context) ([]*models.Profile, error) {
	var users []models.User
	if err := m.store.ReadAll(ctx, store.Users, &users); err != nil {
		return nil, err
	}
	profiles := make([]*models.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}

// SyncSession refreshes the session snapshot when user is the signed-in
// user. It must run inside a unit of work that holds the users collection,
// after the new record has been staged.
func (m *Manager) SyncSession(tx *store.Tx, user *models.User) error {
	var session models.Profile
	found, err := tx.GetKey(constants.KeyCurrentUser, &session)
	if err != nil {
		slog.Warn("session snapshot is unreadable, not refreshing", "component", "auth", "error", err)
		return nil
	}
	if !found || session.ID != user.ID {
		return nil
	}
	return tx.SetKey(constants.KeyCurrentUser, user.Profile())
}

func findByUsername(users []models.User, username, exceptID string) *models.User {
	for i := range users {
		if users[i].ID != exceptID && strings.EqualFold(users[i].Username, username) {
			return &users[i]
		}
	}
	return nil
}

func indexOf(users []models.User, userID string) int {
	if userID == "" {
		return -1
	}
	return slices.IndexFunc(users, func(u models.User) bool { return u.ID == userID })
}
