package types

import (
	"fmt"
	"regexp"
)

// Compiled once at package initialization; validation runs on every request.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUsername checks that a username is 1-50 characters of
// alphanumerics, underscore or hyphen. The same alphabet is used when
// scanning message text for @mentions, so any valid username is mentionable.
func IsValidUsername(username string) bool {
	if len(username) < 1 || len(username) > 50 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// IsValidRoomName checks that a room name is 1-100 characters with no
// leading/trailing whitespace hazards beyond what the alphabet allows.
func IsValidRoomName(name string) bool {
	if len(name) < 1 || len(name) > 100 {
		return false
	}
	return usernameRegex.MatchString(name)
}

// ValidateText bounds message text: non-empty, at most 4000 bytes.
func ValidateText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if len(text) > 4000 {
		return fmt.Errorf("%w: text exceeds 4000 bytes", ErrInvalidInput)
	}
	return nil
}
