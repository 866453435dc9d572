package twin

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit opaque twin identifier, globally unique and generated
// randomly on creation (§3). It is backed by uuid.UUID purely for its
// random-generation and hex-with-hyphens rendering; twinrt never treats
// it as a version-4 UUID semantically.
type ID [16]byte

// NewID generates a fresh, randomly assigned ID.
func NewID() ID {
	return ID(uuid.New())
}

// String renders id in canonical hex-with-hyphens form, e.g.
// "f47ac10b-58cc-4372-a567-0e02b2c3d479".
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the all-zero identifier (never produced by
// NewID; used as a sentinel for "no parent"/"not set").
func (id ID) IsZero() bool {
	return id == ID{}
}

// ParseID parses the canonical hex-with-hyphens rendering produced by
// String back into an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("twin: parse id %q: %w", s, err)
	}
	return ID(u), nil
}
