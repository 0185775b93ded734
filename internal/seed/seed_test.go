package seed

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"schoolhub/internal/apperr"
	"schoolhub/internal/auth"
	"schoolhub/internal/db"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

func TestLoadSeedsOnce(t *testing.T) {
	ctx := context.Background()
	st, users := newTestStore(t)
	loader := NewLoader(st, users, "")
	loader.now = func() time.Time { return time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC) }

	seeded, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !seeded {
		t.Fatal("Load() seeded = false on first launch")
	}

	var clubs []models.Club
	var events []models.Event
	var posts []models.Post
	_ = st.ReadAll(ctx, store.Clubs, &clubs)
	_ = st.ReadAll(ctx, store.Events, &events)
	_ = st.ReadAll(ctx, store.Posts, &posts)

	if len(clubs) != 3 || clubs[0].ID != "club1" || len(clubs[0].Members) != 0 {
		t.Fatalf("clubs = %+v", clubs)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC); !events[0].Date.Equal(want) {
		t.Fatalf("event1 date = %v, want %v", events[0].Date, want)
	}
	if len(posts) != 1 || posts[0].AuthorID != AdminUsername {
		t.Fatalf("posts = %+v", posts)
	}

	// later launches leave user changes alone
	if err := st.WriteAll(ctx, store.Clubs, []models.Club{}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	seeded, err = loader.Load(ctx)
	if err != nil || seeded {
		t.Fatalf("second Load() = %v, %v; want false, nil", seeded, err)
	}
	_ = st.ReadAll(ctx, store.Clubs, &clubs)
	if len(clubs) != 0 {
		t.Fatalf("clubs reseeded: %+v", clubs)
	}
}

func TestLoadCreatesAdminWhenConfigured(t *testing.T) {
	ctx := context.Background()
	st, users := newTestStore(t)

	if _, err := NewLoader(st, users, "s3cret-admin").Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	admin, err := users.Login(ctx, AdminUsername, "s3cret-admin")
	if err != nil {
		t.Fatalf("Login(admin) error = %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("admin role = %q", admin.Role)
	}

	var posts []models.Post
	_ = st.ReadAll(ctx, store.Posts, &posts)
	if posts[0].AuthorID != admin.ID {
		t.Fatalf("welcome post author = %q, want %q", posts[0].AuthorID, admin.ID)
	}
}

func TestLoadKeepsExistingCollections(t *testing.T) {
	ctx := context.Background()
	st, users := newTestStore(t)

	existing := []models.Post{{ID: "post_legacy", Content: "imported", LikedBy: []string{}, Comments: []models.Comment{}}}
	if err := st.WriteAll(ctx, store.Posts, existing); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	if _, err := NewLoader(st, users, "").Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var posts []models.Post
	_ = st.ReadAll(ctx, store.Posts, &posts)
	if len(posts) != 1 || posts[0].ID != "post_legacy" {
		t.Fatalf("posts = %+v, want legacy post kept", posts)
	}
}

func TestLoadToleratesExistingAdmin(t *testing.T) {
	ctx := context.Background()
	st, users := newTestStore(t)

	if _, err := users.CreateUser(ctx, auth.RegisterParams{Username: "Admin", Password: "whatever1", Name: "Someone"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := NewLoader(st, users, "s3cret-admin").Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := users.Login(ctx, AdminUsername, "s3cret-admin"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want existing account untouched", err)
	}
}

func newTestStore(t *testing.T) (*store.Store, *auth.Manager) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	st := store.New(db.NewKVStore(database))
	return st, auth.NewManager(st, auth.NewHasher(bcrypt.MinCost))
}
