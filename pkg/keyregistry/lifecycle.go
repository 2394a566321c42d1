package keyregistry

import "context"

// AddKeyRequest creates a new key record on behalf of Actor. PublicKey.ID is
// normally left empty and generated; a caller-supplied id is honored but
// logged as a privileged event. PrivateKey is optional and only supplied
// when the pairing is to be held server-side.
type AddKeyRequest struct {
	Actor      Actor
	PublicKey  *PublicKey
	PrivateKey *PrivateKey
}

// GetKeyRequest retrieves a single record, by id or by owner and material.
type GetKeyRequest struct {
	Actor Actor
	Query KeyQuery
}

// GetKeyResult is a retrieved record. PublicKey never nests private
// material; PrivateKey is populated separately, and only when the actor
// passed the access check.
type GetKeyResult struct {
	PublicKey  *PublicKey  `json:"publicKey"`
	Meta       Meta        `json:"meta"`
	PrivateKey *PrivateKey `json:"privateKey,omitempty"`
}

// ListKeysRequest retrieves all of an owner's records.
type ListKeysRequest struct {
	Actor   Actor
	Owner   string
	Options ListOptions
}

// UpdateKeyRequest updates descriptive fields of the record identified by
// PublicKey.ID. Status, owner and key material in the payload are ignored.
type UpdateKeyRequest struct {
	Actor     Actor
	PublicKey *PublicKey
}

// RevokeKeyRequest revokes the record identified by KeyID.
type RevokeKeyRequest struct {
	Actor Actor
	KeyID string
}

// Lifecycle is the key lifecycle engine: the five permission-gated
// operations plus key id construction. It is the only component with
// business-rule authority.
type Lifecycle interface {
	AddPublicKey(ctx context.Context, req AddKeyRequest) (*Record, error)
	GetPublicKey(ctx context.Context, req GetKeyRequest) (*GetKeyResult, error)
	GetPublicKeys(ctx context.Context, req ListKeysRequest) ([]*Record, error)
	UpdatePublicKey(ctx context.Context, req UpdateKeyRequest) error
	RevokePublicKey(ctx context.Context, req RevokeKeyRequest) (*Record, error)

	// CreatePublicKeyID composes the full key id for a short slug.
	CreatePublicKeyID(name string) string
}
