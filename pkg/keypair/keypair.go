// Package keypair verifies that public key material is well formed and, when
// private key material is supplied, that the two form a matching pair. The
// check is a proof of possession: a reversible crypto operation round-tripped
// through both keys, not a structural comparison.
//
// The package is pure computation over its inputs; it has no side effects.
package keypair

import (
	"fmt"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Algorithm tags the supported key material variants.
type Algorithm string

const (
	AlgorithmRSA     Algorithm = "RSA"
	AlgorithmEd25519 Algorithm = "Ed25519"
)

// popMarker is the fixed plaintext round-tripped through key pairs.
var popMarker = []byte("plaintext")

// Material carries the raw key material strings for one key pair. The
// private fields are optional; validation stops after the public-only checks
// when they are absent.
type Material struct {
	PublicKeyPem  string
	PrivateKeyPem string

	PublicKeyBase58  string
	PrivateKeyBase58 string
}

// FromKeys collects the material fields from a record pair.
func FromKeys(pub *keyregistry.PublicKey, priv *keyregistry.PrivateKey) Material {
	m := Material{
		PublicKeyPem:    pub.PublicKeyPem,
		PublicKeyBase58: pub.PublicKeyBase58,
	}
	if priv != nil {
		m.PrivateKeyPem = priv.PrivateKeyPem
		m.PrivateKeyBase58 = priv.PrivateKeyBase58
	}
	return m
}

// Algorithm returns the variant selected by the material present. Exactly one
// public key field must be set.
func (m Material) Algorithm() (Algorithm, error) {
	switch {
	case m.PublicKeyPem != "" && m.PublicKeyBase58 != "":
		return "", fmt.Errorf("%w: both PEM and base58 public key material present",
			keyregistry.ErrUnsupportedKeyType)
	case m.PublicKeyPem != "":
		return AlgorithmRSA, nil
	case m.PublicKeyBase58 != "":
		return AlgorithmEd25519, nil
	default:
		return "", fmt.Errorf("%w: no public key material present",
			keyregistry.ErrUnsupportedKeyType)
	}
}

// validator is one proof-of-possession strategy.
type validator interface {
	validate(m Material) error
}

var validators = map[Algorithm]validator{
	AlgorithmRSA:     rsaValidator{},
	AlgorithmEd25519: ed25519Validator{},
}

// Validate dispatches on the algorithm variant and runs its checks. It
// returns nil, or one of ErrUnsupportedKeyType, ErrInvalidPublicKey,
// ErrInvalidPrivateKey, ErrKeyPairMismatch with the underlying cause wrapped.
func Validate(m Material) error {
	alg, err := m.Algorithm()
	if err != nil {
		return err
	}
	return validators[alg].validate(m)
}
