package keyregistry

import (
	"context"
	"time"
)

// Store defines the interface for key record persistence. Implementations
// index by lookup hashes of id, owner and material rather than raw values,
// and must detect both id and (owner, material) collisions on insert.
//
// All writes are single-record and atomic. UpdateStatus is the one
// correctness-critical conditional write: two concurrent revokes of the same
// key must see exactly one matched update.
type Store interface {
	// Insert persists a new record and returns the stored form. A collision
	// on the id or on (owner, material) returns a *DuplicateError.
	Insert(ctx context.Context, key *PublicKey) (*Record, error)

	// FindByID returns the record for a key id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Record, error)

	// FindByOwnerAndMaterial returns the record matching the owner and raw
	// key material, or ErrNotFound.
	FindByOwnerAndMaterial(ctx context.Context, owner, material string) (*Record, error)

	// FindAllByOwner returns all records for an owner in store-natural order,
	// filtered by opts.
	FindAllByOwner(ctx context.Context, owner string, opts ListOptions) ([]*Record, error)

	// UpdateDescriptive applies a partial update of descriptive fields and
	// returns the number of records matched (0 when the id is unknown).
	UpdateDescriptive(ctx context.Context, id string, fields DescriptiveFields) (int64, error)

	// UpdateStatus transitions the record's status from `from` to `to`,
	// stamping revokedAt on the public key and any embedded private key. The
	// update only applies when the current status equals `from`; it returns
	// the number of records matched.
	UpdateStatus(ctx context.Context, id string, from, to KeyStatus, revokedAt time.Time) (int64, error)
}

// IDGenerator hands out unique opaque identifiers for new keys. Uniqueness is
// global; ordering is not required.
type IDGenerator interface {
	GenerateID(ctx context.Context) (string, error)
}
