package store

import (
	"github.com/google/uuid"
)

// newID mints a time-ordered UUIDv7 so rows sort roughly by creation.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
