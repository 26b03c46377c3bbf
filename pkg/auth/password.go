package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPassword = errors.New("invalid room password")

// bcrypt ignores input past 72 bytes, so longer room passwords are refused outright
const maxPasswordBytes = 72

// HashPassword hashes a room password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash checks if a password matches a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidateRoomPassword enforces what a room password may look like:
// - not only whitespace
// - at most 72 bytes
// - single line
func ValidateRoomPassword(password string) error {
	var failures []string

	if strings.TrimSpace(password) == "" {
		failures = append(failures, "at least one non-space character")
	}
	if len(password) > maxPasswordBytes {
		failures = append(failures, fmt.Sprintf("at most %d bytes", maxPasswordBytes))
	}
	if strings.ContainsAny(password, "\r\n") {
		failures = append(failures, "no line breaks")
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: must have %s", ErrInvalidPassword, strings.Join(failures, ", "))
	}
	return nil
}
