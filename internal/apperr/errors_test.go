package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesSentinelOfSameKind(t *testing.T) {
	err := fmt.Errorf("joining club: %w", NotFound("Club not found"))

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(%v, ErrNotFound) = false, want true", err)
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("errors.Is(%v, ErrForbidden) = true, want false", err)
	}
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("writing posts", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected storage error to unwrap to its cause")
	}
	if !errors.Is(err, ErrStorage) {
		t.Fatal("expected storage error to match ErrStorage")
	}
	if got, want := err.Error(), "writing posts: disk full"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestKindOfAndMessageOf(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    Kind
		wantMessage string
	}{
		{name: "validation", err: Validation("name is required"), wantKind: KindValidation, wantMessage: "name is required"},
		{name: "wrapped", err: fmt.Errorf("ctx: %w", Forbidden("Admins only")), wantKind: KindForbidden, wantMessage: "Admins only"},
		{name: "plain", err: errors.New("boom"), wantKind: KindStorage, wantMessage: "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Fatalf("KindOf() = %q, want %q", got, tt.wantKind)
			}
			if got := MessageOf(tt.err); got != tt.wantMessage {
				t.Fatalf("MessageOf() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}
