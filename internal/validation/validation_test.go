package validation

import (
	"errors"
	"testing"

	"schoolhub/internal/apperr"
)

type signup struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"omitempty,oneof=student admin"`
}

func TestStructMessages(t *testing.T) {
	tests := []struct {
		name string
		in   signup
		want string
	}{
		{name: "missing_username", in: signup{Password: "secret1"}, want: "username is required"},
		{name: "bad_username", in: signup{Username: "a b", Password: "secret1"}, want: "username must be 3-32 characters of letters, numbers, '.', '_' or '-'"},
		{name: "short_password", in: signup{Username: "alice", Password: "abc"}, want: "password must be at least 6 characters"},
		{name: "bad_email", in: signup{Username: "alice", Password: "secret1", Email: "nope"}, want: "invalid email format"},
		{name: "bad_role", in: signup{Username: "alice", Password: "secret1", Role: "root"}, want: "role must be one of: student admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Struct() error = %v, want validation error", err)
			}
			if got := apperr.MessageOf(err); got != tt.want {
				t.Fatalf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	in := signup{Username: "alice_a", Password: "pw123456", Email: "alice@example.com", Role: "student"}
	if err := Struct(&in); err != nil {
		t.Fatalf("Struct() error = %v", err)
	}
}

func TestVar(t *testing.T) {
	if err := Var("content", "", "required"); apperr.MessageOf(err) != "content is required" {
		t.Fatalf("Var() error = %v, want content is required", err)
	}
	if err := Var("content", "hello", "required,max=10"); err != nil {
		t.Fatalf("Var() error = %v", err)
	}
}
