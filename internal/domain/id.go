package domain

import "github.com/google/uuid"

// NewID returns a random 128-bit identifier for records not yet confirmed by
// the server.
func NewID() string {
	return uuid.NewString()
}
