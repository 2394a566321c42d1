package keypair

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Encoded lengths of raw Ed25519 keys in base58.
const (
	publicKeyBase58Length  = 44
	privateKeyBase58Length = 88
)

// ed25519Validator checks the base58 syntax and raw lengths first, then
// proves possession with a sign/verify round trip over the marker.
type ed25519Validator struct{}

func (ed25519Validator) validate(m Material) error {
	pub, err := decodeBase58Key(m.PublicKeyBase58, publicKeyBase58Length, ed25519.PublicKeySize)
	if err != nil {
		return fmt.Errorf("%w: %w", keyregistry.ErrInvalidPublicKey, err)
	}

	if m.PrivateKeyBase58 == "" {
		return nil
	}

	priv, err := decodeBase58Key(m.PrivateKeyBase58, privateKeyBase58Length, ed25519.PrivateKeySize)
	if err != nil {
		return fmt.Errorf("%w: %w", keyregistry.ErrInvalidPrivateKey, err)
	}

	signature := ed25519.Sign(ed25519.PrivateKey(priv), popMarker)
	if !ed25519.Verify(ed25519.PublicKey(pub), popMarker, signature) {
		return keyregistry.ErrKeyPairMismatch
	}
	return nil
}

func decodeBase58Key(encoded string, wantChars, wantBytes int) ([]byte, error) {
	if len(encoded) != wantChars {
		return nil, fmt.Errorf("key material length must be %d base58 characters, got %d",
			wantChars, len(encoded))
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != wantBytes {
		return nil, fmt.Errorf("decoded key material must be %d bytes, got %d",
			wantBytes, len(raw))
	}
	return raw, nil
}
