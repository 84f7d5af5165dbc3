package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// HashPassword returns a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword validates a password against a bcrypt hash.
func CheckPassword(password, stored string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// ValidatePassword enforces the registration password policy.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return errors.New("password is required")
	}
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	if len(password) > 72 {
		// bcrypt ignores everything past 72 bytes.
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// Hasher adapts the package functions to the collaborator interface used by
// the guest pool.
type Hasher struct{}

func (Hasher) Hash(plaintext string) (string, error) { return HashPassword(plaintext) }

func (Hasher) Verify(plaintext, hash string) bool { return CheckPassword(plaintext, hash) }
