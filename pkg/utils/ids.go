package utils

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var newUUIDv7 = uuid.NewV7

// ErrNilID is returned by ParseID for the all-zero UUID.
var ErrNilID = errors.New("id must not be the nil uuid")

// GenerateUUIDv7 returns a time-ordered id for a new row, falling back to
// a random v4 id if the v7 source fails.
func GenerateUUIDv7() uuid.UUID {
	id, err := newUUIDv7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ParseID parses an identifier taken from a path or body.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, ErrNilID
	}
	return id, nil
}
