package crypto

import (
	"github.com/google/uuid"
)

// NewHandleID returns a time-ordered UUIDv7 string naming one live connection.
// Handle IDs sort by creation, so the newer of two connections compares greater.
func NewHandleID() string {
	return uuid.Must(uuid.NewV7()).String()
}
