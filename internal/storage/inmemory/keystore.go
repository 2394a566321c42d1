// Package inmemory provides a thread-safe in-memory key record store, used
// for local run mode and unit tests. It mirrors the document store contract:
// lookups go through the same hashed keys, inserts detect both id and
// (owner, material) collisions, and status transitions are conditional.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Store is a concrete in-memory implementation of keyregistry.Store.
type Store struct {
	mu sync.RWMutex
	// records is keyed by the lookup hash of the key id.
	records map[string]*keyregistry.Record
	// materialIndex enforces the sparse (owner, material) uniqueness; keyed
	// by ownerHash+"/"+materialHash, valued by the id hash.
	materialIndex map[string]string
	// order preserves insertion order for owner scans.
	order []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:       make(map[string]*keyregistry.Record),
		materialIndex: make(map[string]string),
	}
}

func materialIndexKey(owner, material string) string {
	return keyregistry.LookupHash(owner) + "/" + keyregistry.LookupHash(material)
}

// Insert persists a new record, detecting id and (owner, material)
// collisions.
func (s *Store) Insert(_ context.Context, key *keyregistry.PublicKey) (*keyregistry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idHash := keyregistry.LookupHash(key.ID)
	if _, exists := s.records[idHash]; exists {
		return nil, &keyregistry.DuplicateError{KeyID: key.ID}
	}

	indexKey := ""
	if material := key.Material(); material != "" {
		indexKey = materialIndexKey(key.Owner, material)
		if _, exists := s.materialIndex[indexKey]; exists {
			return nil, &keyregistry.DuplicateError{KeyID: key.ID}
		}
	}

	now := time.Now().UTC()
	record := &keyregistry.Record{
		PublicKey: key.Clone(),
		Meta:      keyregistry.Meta{Created: now, Updated: now},
	}
	s.records[idHash] = record
	if indexKey != "" {
		s.materialIndex[indexKey] = idHash
	}
	s.order = append(s.order, idHash)

	return record.Clone(), nil
}

// FindByID returns the record for a key id, or ErrNotFound.
func (s *Store) FindByID(_ context.Context, id string) (*keyregistry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[keyregistry.LookupHash(id)]
	if !ok {
		return nil, keyregistry.ErrNotFound
	}
	return record.Clone(), nil
}

// FindByOwnerAndMaterial returns the record matching the hashed owner and
// material pair, or ErrNotFound.
func (s *Store) FindByOwnerAndMaterial(_ context.Context, owner, material string) (*keyregistry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idHash, ok := s.materialIndex[materialIndexKey(owner, material)]
	if !ok {
		return nil, keyregistry.ErrNotFound
	}
	return s.records[idHash].Clone(), nil
}

// FindAllByOwner returns the owner's records in insertion order.
func (s *Store) FindAllByOwner(_ context.Context, owner string, opts keyregistry.ListOptions) ([]*keyregistry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*keyregistry.Record, 0)
	for _, idHash := range s.order {
		record := s.records[idHash]
		if record.PublicKey.Owner != owner {
			continue
		}
		if opts.Capability == keyregistry.CapabilitySign && record.PublicKey.PrivateKey == nil {
			continue
		}
		results = append(results, record.Clone())
	}
	return results, nil
}

// UpdateDescriptive applies the descriptive fields to a record, returning the
// matched count.
func (s *Store) UpdateDescriptive(_ context.Context, id string, fields keyregistry.DescriptiveFields) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[keyregistry.LookupHash(id)]
	if !ok {
		return 0, nil
	}
	if fields.Label != nil {
		record.PublicKey.Label = *fields.Label
	}
	if fields.Type != nil {
		record.PublicKey.Type = *fields.Type
	}
	record.Meta.Updated = time.Now().UTC()
	return 1, nil
}

// UpdateStatus conditionally transitions the record's status, stamping the
// revocation time on the public key and any embedded private key.
func (s *Store) UpdateStatus(_ context.Context, id string, from, to keyregistry.KeyStatus, revokedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[keyregistry.LookupHash(id)]
	if !ok || record.PublicKey.Status != from {
		return 0, nil
	}

	revoked := revokedAt
	record.PublicKey.Status = to
	record.PublicKey.Revoked = &revoked
	if record.PublicKey.PrivateKey != nil {
		record.PublicKey.PrivateKey.Status = to
		record.PublicKey.PrivateKey.Revoked = &revoked
	}
	record.Meta.Updated = time.Now().UTC()
	return 1, nil
}
