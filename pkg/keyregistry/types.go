// Package keyregistry contains the public domain model, collaborator
// interfaces, and error taxonomy for the key registry. It defines the public
// contract; implementations live under internal/.
package keyregistry

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// KeyStatus is the lifecycle state of a key record. Keys start active and
// move to disabled exactly once, via revocation. There is no way back.
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusDisabled KeyStatus = "disabled"
)

// DefaultKeyType is applied to records created without an explicit type.
const DefaultKeyType = "CryptographicKey"

// CapabilitySign restricts bulk reads to keys that carry embedded private
// material, i.e. keys the server can sign with.
const CapabilitySign = "sign"

// PublicKey is the persisted unit of the registry. Exactly one of
// PublicKeyPem (RSA) or PublicKeyBase58 (Ed25519) must be set; which one is
// present selects the validation algorithm.
type PublicKey struct {
	// ID is a URI-like identifier, immutable once assigned.
	ID    string `json:"id,omitempty" firestore:"id,omitempty"`
	Owner string `json:"owner,omitempty" firestore:"owner,omitempty"`
	Type  string `json:"type,omitempty" firestore:"type,omitempty"`
	Label string `json:"label,omitempty" firestore:"label,omitempty"`

	Status  KeyStatus  `json:"sysStatus,omitempty" firestore:"sysStatus,omitempty"`
	Revoked *time.Time `json:"revoked,omitempty" firestore:"revoked,omitempty"`

	PublicKeyPem    string `json:"publicKeyPem,omitempty" firestore:"publicKeyPem,omitempty"`
	PublicKeyBase58 string `json:"publicKeyBase58,omitempty" firestore:"publicKeyBase58,omitempty"`

	// PrivateKey is only ever populated server-side. Read paths must strip it
	// unless the caller passes the access check.
	PrivateKey *PrivateKey `json:"privateKey,omitempty" firestore:"privateKey,omitempty"`
}

// Material returns whichever raw key material field is present.
func (k *PublicKey) Material() string {
	if k.PublicKeyPem != "" {
		return k.PublicKeyPem
	}
	return k.PublicKeyBase58
}

// Clone returns a deep copy of the key, including any embedded private key.
func (k *PublicKey) Clone() *PublicKey {
	if k == nil {
		return nil
	}
	out := *k
	if k.Revoked != nil {
		revoked := *k.Revoked
		out.Revoked = &revoked
	}
	out.PrivateKey = k.PrivateKey.Clone()
	return &out
}

// PrivateKey is the optional server-held pairing for a public key. Label and
// type are inherited from the public side when absent.
type PrivateKey struct {
	Type  string `json:"type,omitempty" firestore:"type,omitempty"`
	Label string `json:"label,omitempty" firestore:"label,omitempty"`

	Status  KeyStatus  `json:"sysStatus,omitempty" firestore:"sysStatus,omitempty"`
	Revoked *time.Time `json:"revoked,omitempty" firestore:"revoked,omitempty"`

	PrivateKeyPem    string `json:"privateKeyPem,omitempty" firestore:"privateKeyPem,omitempty"`
	PrivateKeyBase58 string `json:"privateKeyBase58,omitempty" firestore:"privateKeyBase58,omitempty"`

	// PublicKey is the id of the paired public key record.
	PublicKey string `json:"publicKey,omitempty" firestore:"publicKey,omitempty"`
}

// Clone returns a deep copy of the private key.
func (k *PrivateKey) Clone() *PrivateKey {
	if k == nil {
		return nil
	}
	out := *k
	if k.Revoked != nil {
		revoked := *k.Revoked
		out.Revoked = &revoked
	}
	return &out
}

// Meta holds store-managed timestamps.
type Meta struct {
	Created time.Time `json:"created" firestore:"created"`
	Updated time.Time `json:"updated" firestore:"updated"`
}

// Record is a stored public key together with its metadata.
type Record struct {
	PublicKey *PublicKey `json:"publicKey" firestore:"publicKey"`
	Meta      Meta       `json:"meta" firestore:"meta"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{PublicKey: r.PublicKey.Clone(), Meta: r.Meta}
}

// KeyQuery identifies a single record: either by id, or by owner plus raw key
// material.
type KeyQuery struct {
	ID       string
	Owner    string
	Material string
}

// ByID reports whether the query is an id lookup.
func (q KeyQuery) ByID() bool { return q.ID != "" }

// DescriptiveFields are the only fields an update may touch. Status, owner
// and key material are unrepresentable here, which is what keeps them
// immutable through the update path.
type DescriptiveFields struct {
	Label *string
	Type  *string
}

// ListOptions filter bulk reads.
type ListOptions struct {
	// Capability, when set to CapabilitySign, restricts results to records
	// with embedded private key material.
	Capability string
}

// LookupHash returns the fixed-width digest used as an indexed query key in
// place of raw identifiers and key material. Keeps PII and secrets out of
// index structures and cache key namespaces.
func LookupHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
