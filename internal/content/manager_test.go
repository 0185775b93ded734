package content

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"schoolhub/internal/apperr"
	"schoolhub/internal/auth"
	"schoolhub/internal/db"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

type fixture struct {
	ctx     context.Context
	store   *store.Store
	auth    *auth.Manager
	content *Manager
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []models.Message
	chats    []string
}

func (n *recordingNotifier) ChatUpdated(chat *models.Chat, message *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, chat.ID)
	n.messages = append(n.messages, *message)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	st := store.New(db.NewKVStore(database))
	authManager := auth.NewManager(st, auth.NewHasher(bcrypt.MinCost))
	contentManager := NewManager(st, authManager)

	ctx := context.Background()
	require.NoError(t, authManager.Initialize(ctx))
	require.NoError(t, contentManager.Initialize(ctx))

	return &fixture{ctx: ctx, store: st, auth: authManager, content: contentManager}
}

func (f *fixture) register(t *testing.T, username, name string) *models.Profile {
	t.Helper()
	profile, err := f.auth.Register(f.ctx, auth.RegisterParams{Username: username, Password: "pw123456", Name: name})
	require.NoError(t, err)
	return profile
}

func (f *fixture) admin(t *testing.T) *models.Profile {
	t.Helper()
	profile, err := f.auth.CreateUser(f.ctx, auth.RegisterParams{
		Username: "admin", Password: "adminpass", Name: "Admin", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	return profile
}

func (f *fixture) seedClub(t *testing.T, id string) {
	t.Helper()
	clubs := []models.Club{{ID: id, Name: "Robotics Club", Members: []string{}}}
	require.NoError(t, f.store.WriteAll(f.ctx, store.Clubs, clubs))
}

func (f *fixture) seedEvent(t *testing.T, id string) {
	t.Helper()
	events := []models.Event{{ID: id, Title: "Homecoming Dance", Date: time.Now().AddDate(0, 0, 10), Attendees: []string{}}}
	require.NoError(t, f.store.WriteAll(f.ctx, store.Events, events))
}

func TestOperationsRequireResolvableActor(t *testing.T) {
	f := newFixture(t)

	for _, actor := range []string{"", "user_ghost"} {
		_, err := f.content.Posts(f.ctx, actor)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

		_, err = f.content.AddPost(f.ctx, actor, "hello", "")
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

		_, err = f.content.Chats(f.ctx, actor)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

		_, err = f.content.JoinClub(f.ctx, actor, "club1")
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	}
}

func TestAddPostScenario(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")

	post, err := f.content.AddPost(f.ctx, alice.ID, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, alice.ID, post.AuthorID)
	assert.Equal(t, "Alice A", post.Author)
	assert.Equal(t, "Alice A's Post", post.Title)
	assert.Equal(t, 0, post.Likes)
	assert.Empty(t, post.LikedBy)
	assert.Empty(t, post.Comments)

	posts, err := f.content.Posts(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)
}

func TestAddPostPrependsAndSanitizes(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")

	first, err := f.content.AddPost(f.ctx, alice.ID, "first", "")
	require.NoError(t, err)
	second, err := f.content.AddPost(f.ctx, alice.ID, "  <b>second</b><script>alert(1)</script> ", "News")
	require.NoError(t, err)
	assert.Equal(t, "second", second.Content)
	assert.Equal(t, "News", second.Title)

	posts, err := f.content.Posts(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)
}

func TestCleanDoesNotDecodeEntitiesIntoMarkup(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "ampersand", input: "Tom &amp; Jerry", want: "Tom & Jerry"},
		{name: "raw_ampersand", input: "Tom & Jerry", want: "Tom & Jerry"},
		{name: "less_than", input: "1 < 2", want: "1 < 2"},
		{name: "encoded_tags", input: "&lt;b&gt;bold&lt;/b&gt; text", want: "bold text"},
		{name: "double_encoded", input: "&amp;lt;i&amp;gt;x&amp;lt;/i&amp;gt;", want: "x"},
		{name: "encoded_script", input: "&lt;script&gt;alert(1)&lt;/script&gt;", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.content.clean(tt.input)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<script")
		})
	}
}

func TestAddPostRejectsEntityEncodedMarkup(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")

	_, err := f.content.AddPost(f.ctx, alice.ID, "&lt;script&gt;alert(1)&lt;/script&gt;", "")
	assert.ErrorIs(t, err, apperr.ErrValidation, "nothing but a script is empty content")

	post, err := f.content.AddPost(f.ctx, alice.ID, "&lt;script&gt;alert(1)&lt;/script&gt;hello &lt;b&gt;world&lt;/b&gt; &amp; friends", "")
	require.NoError(t, err)
	assert.Equal(t, "hello world & friends", post.Content)

	comment, err := f.content.AddComment(f.ctx, alice.ID, post.ID, "&lt;img src=x onerror=alert(1)&gt;nice")
	require.NoError(t, err)
	assert.Equal(t, "nice", comment.Content)
}

func TestAddPostValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")

	_, err := f.content.AddPost(f.ctx, alice.ID, "   ", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.content.AddPost(f.ctx, alice.ID, "<p></p>", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.content.AddPost(f.ctx, alice.ID, strings.Repeat("a", 2001), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLikePostToggles(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	bob := f.register(t, "bob", "Bob B")
	post, err := f.content.AddPost(f.ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	liked, err := f.content.LikePost(f.ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Likes)
	assert.Equal(t, []string{alice.ID}, liked.LikedBy)

	liked, err = f.content.LikePost(f.ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, liked.Likes)

	unliked, err := f.content.LikePost(f.ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unliked.Likes)
	assert.Equal(t, []string{bob.ID}, unliked.LikedBy)

	_, err = f.content.LikePost(f.ctx, bob.ID, post.ID)
	require.NoError(t, err)

	posts, err := f.content.Posts(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, posts[0].Likes)
	assert.Empty(t, posts[0].LikedBy)

	_, err = f.content.LikePost(f.ctx, alice.ID, "post_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLikePostConcurrentTogglesAreNotLost(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	post, err := f.content.AddPost(f.ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	users := make([]string, 6)
	for i := range users {
		users[i] = f.register(t, "user"+string(rune('a'+i))+"x", "User").ID
	}

	var wg sync.WaitGroup
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.content.LikePost(f.ctx, id, post.ID)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	posts, err := f.content.Posts(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, len(users), posts[0].Likes)
	assert.ElementsMatch(t, users, posts[0].LikedBy)
}

func TestAddCommentAppends(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	bob := f.register(t, "bob", "Bob B")
	post, err := f.content.AddPost(f.ctx, alice.ID, "hello", "")
	require.NoError(t, err)

	c1, err := f.content.AddComment(f.ctx, bob.ID, post.ID, "first!")
	require.NoError(t, err)
	c2, err := f.content.AddComment(f.ctx, alice.ID, post.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "Bob B", c1.Author)

	posts, err := f.content.Posts(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, posts[0].Comments, 2)
	assert.Equal(t, c1.ID, posts[0].Comments[0].ID)
	assert.Equal(t, c2.ID, posts[0].Comments[1].ID)

	_, err = f.content.AddComment(f.ctx, alice.ID, "post_missing", "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.content.AddComment(f.ctx, alice.ID, post.ID, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestJoinClubScenario(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	f.seedClub(t, "club1")

	club, err := f.content.JoinClub(f.ctx, alice.ID, "club1")
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount())

	user, err := f.auth.GetUser(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"club1"}, user.Clubs)

	// idempotent
	club, err = f.content.JoinClub(f.ctx, alice.ID, "club1")
	require.NoError(t, err)
	assert.Equal(t, 1, club.MemberCount())
	user, err = f.auth.GetUser(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"club1"}, user.Clubs)

	session, err := f.auth.CurrentUser(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"club1"}, session.Clubs, "session snapshot refreshed")

	_, err = f.content.JoinClub(f.ctx, alice.ID, "club_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLeaveClubKeepsBothSidesConsistent(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	f.seedClub(t, "club1")

	_, err := f.content.JoinClub(f.ctx, alice.ID, "club1")
	require.NoError(t, err)

	club, err := f.content.LeaveClub(f.ctx, alice.ID, "club1")
	require.NoError(t, err)
	assert.Empty(t, club.Members)

	user, err := f.auth.GetUser(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, user.Clubs)

	club, err = f.content.LeaveClub(f.ctx, alice.ID, "club1")
	require.NoError(t, err)
	assert.Empty(t, club.Members)
}

func TestCreateClubMakesCreatorMember(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")

	club, err := f.content.CreateClub(f.ctx, alice.ID, ClubParams{
		Name: "Chess Club", Description: "Weekly games", MeetingDay: "Friday", MeetingTime: "3:30 PM", Location: "Library",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, club.Members)
	assert.Equal(t, alice.ID, club.CreatedBy)

	user, err := f.auth.GetUser(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{club.ID}, user.Clubs)

	_, err = f.content.CreateClub(f.ctx, alice.ID, ClubParams{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateEventIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	admin := f.admin(t)
	params := EventParams{Title: "Science Fair", Date: time.Now().AddDate(0, 0, 15), Time: "9:00 AM", Location: "Cafeteria"}

	_, err := f.content.CreateEvent(f.ctx, alice.ID, params)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	event, err := f.content.CreateEvent(f.ctx, admin.ID, params)
	require.NoError(t, err)
	assert.Equal(t, []string{admin.ID}, event.Attendees)

	adminUser, err := f.auth.GetUser(f.ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{event.ID}, adminUser.RSVPs)

	_, err = f.content.CreateEvent(f.ctx, admin.ID, EventParams{Title: "No date"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRsvpEventIsIdempotentAndReversible(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	f.seedEvent(t, "event1")

	for range 2 {
		event, err := f.content.RsvpEvent(f.ctx, alice.ID, "event1")
		require.NoError(t, err)
		assert.Equal(t, []string{alice.ID}, event.Attendees)
	}
	user, err := f.auth.GetUser(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"event1"}, user.RSVPs)

	event, err := f.content.CancelRsvp(f.ctx, alice.ID, "event1")
	require.NoError(t, err)
	assert.Empty(t, event.Attendees)
	user, err = f.auth.GetUser(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, user.RSVPs)

	_, err = f.content.RsvpEvent(f.ctx, alice.ID, "event_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateChatDeduplicates(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	bob := f.register(t, "bob", "Bob B")

	chat, err := f.content.CreateChat(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID, bob.ID}, chat.Participants)
	assert.Equal(t, []models.ParticipantDetail{{ID: alice.ID, Name: "Alice A"}, {ID: bob.ID, Name: "Bob B"}}, chat.ParticipantDetails)

	again, err := f.content.CreateChat(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)

	reversed, err := f.content.CreateChat(f.ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, reversed.ID)

	chats, err := f.content.Chats(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestCreateChatErrors(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")

	_, err := f.content.CreateChat(f.ctx, alice.ID, "user_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.content.CreateChat(f.ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{}
	f.content.SetNotifier(notifier)
	alice := f.register(t, "alice", "Alice A")
	bob := f.register(t, "bob", "Bob B")
	carol := f.register(t, "carol", "Carol C")

	chat, err := f.content.CreateChat(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	msg, err := f.content.SendMessage(f.ctx, bob.ID, chat.ID, "Hi there!")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, msg.SenderID)

	stored, err := f.content.Chat(f.ctx, alice.ID, chat.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, "Hi there!", stored.Messages[0].Content)
	assert.Equal(t, msg.Timestamp, stored.UpdatedAt)
	assert.Equal(t, []string{chat.ID}, notifier.chats)

	_, err = f.content.SendMessage(f.ctx, carol.ID, chat.ID, "let me in")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.content.Chat(f.ctx, carol.ID, chat.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.content.SendMessage(f.ctx, alice.ID, "chat_missing", "hello")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.content.SendMessage(f.ctx, alice.ID, chat.ID, strings.Repeat("x", 4001))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	chats, err := f.content.Chats(f.ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)
	assert.Len(t, notifier.messages, 1)
}

func TestDeleteAccountLeavesMembershipConsistent(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "Alice A")
	f.seedClub(t, "club1")
	_, err := f.content.JoinClub(f.ctx, alice.ID, "club1")
	require.NoError(t, err)

	require.NoError(t, f.auth.DeleteAccount(f.ctx, alice.ID))

	bob := f.register(t, "bob", "Bob B")
	clubs, err := f.content.Clubs(f.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Empty(t, clubs[0].Members)
}
