package keyregistry

import (
	"errors"
	"fmt"
)

// Validation failures. All are client faults; the underlying parse or crypto
// error is attached as the wrapped cause.
var (
	// ErrInvalidPublicKey means the public key material could not be parsed
	// or used.
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrInvalidPrivateKey means the private key material itself is
	// malformed. A private key that parses but does not pair with the public
	// key is ErrKeyPairMismatch, never this.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrKeyPairMismatch means both keys are individually valid but do not
	// form a pair.
	ErrKeyPairMismatch = errors.New("key pair does not match")
	// ErrUnsupportedKeyType means neither known key material field was set,
	// or both were.
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

var (
	// ErrNotFound is returned on lookup misses, and by revoke when the record
	// is already disabled.
	ErrNotFound = errors.New("public key not found")
	// ErrPermissionDenied is the hard failure on create, update and revoke.
	// Read paths never surface it; a denied read only narrows the response.
	ErrPermissionDenied = errors.New("permission denied")
)

// DuplicateError reports an insert that collided with an existing record,
// either on the key id or on the (owner, material) pair.
type DuplicateError struct {
	KeyID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate public key %q", e.KeyID)
}

// IsDuplicateError reports whether err is a DuplicateError.
func IsDuplicateError(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup)
}
