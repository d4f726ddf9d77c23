package reaction

import "github.com/google/uuid"

// NewRandomID returns a random UUID string used for molecules and sequences.
func NewRandomID() string {
	return uuid.NewString()
}
