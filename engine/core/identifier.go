package core

import (
	"github.com/google/uuid"
)

// NewResourceID returns a random identifier for a loaded asset or GPU resource.
func NewResourceID() uuid.UUID {
	return uuid.New()
}

// ShortID is the first block of the identifier, used in log lines.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}
