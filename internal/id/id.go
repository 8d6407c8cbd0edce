// Package id generates identifiers for items and share links.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate creates a prefixed URL-safe ID, e.g. "shr-V1StGXR8_Z5jdHi6B-myT".
// Share ids end up in public URLs, so they use NanoID rather than UUIDs.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// Item returns a time-ordered UUIDv7 string. Later items sort after
// earlier ones, like the timestamp ids the web client used to assign.
func Item() string {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		return uuid.NewString()
	}
	return u.String()
}
