package models

import (
	"slices"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is the canonical record stored in the users collection.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Bio          string     `json:"bio"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	Clubs        []string   `json:"clubs"`
	RSVPs        []string   `json:"rsvps"`
	Friends      []string   `json:"friends"`
}

// Profile is the public view of a User. It is what managers hand back to
// callers and what the session snapshot holds; it never carries a credential.
type Profile struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Bio       string     `json:"bio"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Clubs     []string   `json:"clubs"`
	RSVPs     []string   `json:"rsvps"`
	Friends   []string   `json:"friends"`
}

func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Bio:       u.Bio,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Clubs:     cloneIDs(u.Clubs),
		RSVPs:     cloneIDs(u.RSVPs),
		Friends:   cloneIDs(u.Friends),
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Normalize replaces nil id sets with empty ones so documents always
// serialize as arrays.
func (u *User) Normalize() {
	u.Clubs = nonNil(u.Clubs)
	u.RSVPs = nonNil(u.RSVPs)
	u.Friends = nonNil(u.Friends)
	if u.Role == "" {
		u.Role = RoleStudent
	}
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// AddID appends id to set unless already present. It reports whether the
// set changed.
func AddID(set []string, id string) ([]string, bool) {
	if slices.Contains(set, id) {
		return set, false
	}
	return append(set, id), true
}

// RemoveID deletes every occurrence of id from set. It reports whether the
// set changed.
func RemoveID(set []string, id string) ([]string, bool) {
	out := slices.DeleteFunc(slices.Clone(set), func(v string) bool { return v == id })
	return nonNil(out), len(out) != len(set)
}
