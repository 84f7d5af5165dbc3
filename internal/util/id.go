package util

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string for request correlation.
func NewID() string {
	return uuid.NewString()
}
