// Package idgen implements the key id generator.
package idgen

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator hands out random UUID slugs. Globally unique without
// coordination; not monotonic, which the registry does not require.
type UUIDGenerator struct{}

// New creates a UUID-backed generator.
func New() *UUIDGenerator { return &UUIDGenerator{} }

// GenerateID returns a new opaque unique identifier.
func (*UUIDGenerator) GenerateID(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
