package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestProfileOmitsPasswordHash(t *testing.T) {
	u := User{ID: "user_1", Username: "alice", PasswordHash: "$2a$10$secret", Name: "Alice A"}
	u.Normalize()

	data, err := json.Marshal(u.Profile())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "secret") || strings.Contains(string(data), "password") {
		t.Fatalf("profile JSON leaks credential: %s", data)
	}
	if !strings.Contains(string(data), `"clubs":[]`) {
		t.Fatalf("profile JSON = %s, want empty clubs array", data)
	}
}

func TestAddAndRemoveID(t *testing.T) {
	set, changed := AddID([]string{"club1"}, "club2")
	if !changed || len(set) != 2 {
		t.Fatalf("AddID() = %v, %v", set, changed)
	}
	set, changed = AddID(set, "club2")
	if changed || len(set) != 2 {
		t.Fatalf("AddID() duplicate = %v, %v", set, changed)
	}
	set, changed = RemoveID(set, "club1")
	if !changed || len(set) != 1 || set[0] != "club2" {
		t.Fatalf("RemoveID() = %v, %v", set, changed)
	}
	set, changed = RemoveID(set, "missing")
	if changed || len(set) != 1 {
		t.Fatalf("RemoveID() missing = %v, %v", set, changed)
	}
}

func TestChatIsBetween(t *testing.T) {
	chat := Chat{Participants: []string{"a", "b"}}
	if !chat.IsBetween("b", "a") {
		t.Fatal("expected order-independent match")
	}
	if chat.IsBetween("a", "c") {
		t.Fatal("expected mismatch for different participant")
	}

	group := Chat{Participants: []string{"a", "b", "c"}}
	if group.IsBetween("a", "b") {
		t.Fatal("expected group chat not to match a two-party lookup")
	}
}

func TestPostNormalizeDerivesLikes(t *testing.T) {
	p := Post{Likes: 7, LikedBy: []string{"u1", "u2"}}
	p.Normalize()
	if p.Likes != 2 {
		t.Fatalf("Likes = %d, want 2", p.Likes)
	}
	if p.Comments == nil {
		t.Fatal("expected Comments to be non-nil")
	}
}
