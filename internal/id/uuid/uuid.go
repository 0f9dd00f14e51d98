// Package uuid generates crawl run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates run IDs. The zero value yields time-ordered UUIDv7 strings
// so run IDs sort by start time in logs and sink tables.
type Generator struct {
	random bool
}

// New returns a UUIDv7 generator.
func New() *Generator {
	return &Generator{}
}

// NewRandom returns a UUIDv4 generator.
func NewRandom() *Generator {
	return &Generator{random: true}
}

// NewID returns a new identifier string.
func (g Generator) NewID() (string, error) {
	if g.random {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("generate uuid4: %w", err)
		}
		return id.String(), nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
