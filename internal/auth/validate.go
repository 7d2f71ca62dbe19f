package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

// ErrInvalidUsername is returned for usernames outside the accepted shape.
var ErrInvalidUsername = errors.New("invalid username")

// ValidateUsername checks the username length in characters and rejects
// surrounding whitespace. Usernames are compared case-sensitively.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) != username {
		return fmt.Errorf("%w: leading or trailing whitespace", ErrInvalidUsername)
	}
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("%w: must be %d-%d characters, got %d", ErrInvalidUsername, MinUsernameLength, MaxUsernameLength, n)
	}
	return nil
}
