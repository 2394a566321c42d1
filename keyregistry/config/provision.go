package config

import "github.com/tinywideclouds/go-key-registry/pkg/keyregistry"

// ProvisionedKey is a key pair listed in configuration for idempotent
// insertion at startup.
type ProvisionedKey struct {
	PublicKey  ProvisionedPublicKey   `yaml:"public_key"`
	PrivateKey *ProvisionedPrivateKey `yaml:"private_key"`
}

// ProvisionedPublicKey mirrors the public key fields accepted from YAML.
type ProvisionedPublicKey struct {
	ID              string `yaml:"id"`
	Owner           string `yaml:"owner"`
	Label           string `yaml:"label"`
	Type            string `yaml:"type"`
	PublicKeyPem    string `yaml:"public_key_pem"`
	PublicKeyBase58 string `yaml:"public_key_base58"`
}

// ProvisionedPrivateKey mirrors the private key fields accepted from YAML.
type ProvisionedPrivateKey struct {
	Label            string `yaml:"label"`
	Type             string `yaml:"type"`
	PrivateKeyPem    string `yaml:"private_key_pem"`
	PrivateKeyBase58 string `yaml:"private_key_base58"`
}

// Keys converts the YAML shapes into domain keys.
func (k ProvisionedKey) Keys() (*keyregistry.PublicKey, *keyregistry.PrivateKey) {
	pub := &keyregistry.PublicKey{
		ID:              k.PublicKey.ID,
		Owner:           k.PublicKey.Owner,
		Label:           k.PublicKey.Label,
		Type:            k.PublicKey.Type,
		PublicKeyPem:    k.PublicKey.PublicKeyPem,
		PublicKeyBase58: k.PublicKey.PublicKeyBase58,
	}
	if k.PrivateKey == nil {
		return pub, nil
	}
	priv := &keyregistry.PrivateKey{
		Label:            k.PrivateKey.Label,
		Type:             k.PrivateKey.Type,
		PrivateKeyPem:    k.PrivateKey.PrivateKeyPem,
		PrivateKeyBase58: k.PrivateKey.PrivateKeyBase58,
	}
	return pub, priv
}
