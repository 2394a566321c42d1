package keypair

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// rsaValidator proves possession by encrypting the marker with the public key
// and decrypting with the private key. Parse failures and decrypt failures
// are kept distinct: a private key that parses but cannot decrypt the
// ciphertext is a pair mismatch, not an invalid key.
type rsaValidator struct{}

func (rsaValidator) validate(m Material) error {
	pub, err := parseRSAPublicKey(m.PublicKeyPem)
	if err != nil {
		return fmt.Errorf("%w: %w", keyregistry.ErrInvalidPublicKey, err)
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, popMarker)
	if err != nil {
		return fmt.Errorf("%w: %w", keyregistry.ErrInvalidPublicKey, err)
	}

	if m.PrivateKeyPem == "" {
		return nil
	}

	priv, err := parseRSAPrivateKey(m.PrivateKeyPem)
	if err != nil {
		return fmt.Errorf("%w: %w", keyregistry.ErrInvalidPrivateKey, err)
	}

	decrypted, err := rsa.DecryptPKCS1v15(nil, priv, ciphertext)
	if err != nil {
		// The key parsed; it just doesn't open what the public key sealed.
		return fmt.Errorf("%w: %w", keyregistry.ErrKeyPairMismatch, err)
	}
	if !bytes.Equal(decrypted, popMarker) {
		return keyregistry.ErrKeyPairMismatch
	}
	return nil
}

func parseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("unexpected public key type %T", key)
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected private key type %T", key)
	}
	return rsaKey, nil
}
