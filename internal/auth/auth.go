package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the bcrypt cost factor
	BcryptCost = 12
)

// ErrEmptyPassword is returned when hashing an empty credential.
var ErrEmptyPassword = errors.New("password is required")

// Hasher produces and checks one-way salted password hashes.
type Hasher struct {
	Cost int
}

// DefaultHasher returns a hasher using BcryptCost.
func DefaultHasher() *Hasher {
	return &Hasher{Cost: BcryptCost}
}

func (h *Hasher) cost() int {
	if h == nil || h.Cost == 0 {
		return BcryptCost
	}
	return h.Cost
}

// HashPassword hashes a password using bcrypt
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a hash.
// An empty password or an empty hash never matches.
func (h *Hasher) CheckPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
