package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	h := &Hasher{Cost: bcrypt.MinCost}

	hash, err := h.HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "secret1" {
		t.Fatal("expected hash to differ from plaintext")
	}
	if !h.CheckPassword("secret1", hash) {
		t.Fatal("expected matching password to verify")
	}
	if h.CheckPassword("wrong", hash) {
		t.Fatal("expected wrong password to fail")
	}
	if h.CheckPassword("", hash) {
		t.Fatal("expected empty password to fail")
	}
	if h.CheckPassword("secret1", "") {
		t.Fatal("expected empty hash to fail")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h := &Hasher{Cost: bcrypt.MinCost}

	a, err := h.HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	b, err := h.HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := DefaultHasher().HashPassword("")
	if !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"minimum length", "abc", false},
		{"maximum length", strings.Repeat("a", 50), false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 51), true},
		{"multibyte counted as runes", "äöü", false},
		{"leading space", " alice", true},
		{"trailing space", "alice ", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr && !errors.Is(err, ErrInvalidUsername) {
				t.Fatalf("expected ErrInvalidUsername, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
