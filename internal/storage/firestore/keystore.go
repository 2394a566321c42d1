// Package firestore provides a key record store backed by Google Cloud
// Firestore.
//
// Documents are keyed by the lookup hash of the key id, so a plain Create
// doubles as duplicate-id detection. The sparse (owner, material) uniqueness
// is enforced through a sibling index collection written in the same
// transaction as the record. Status transitions are read-check-write
// transactions, which gives revocation its compare-and-swap semantics.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// keyDocument is the structure stored per key record. The id, owner and
// material fields hold lookup hashes, never raw values.
type keyDocument struct {
	ID        string                 `firestore:"id"`
	Owner     string                 `firestore:"owner"`
	Material  string                 `firestore:"material,omitempty"`
	PublicKey *keyregistry.PublicKey `firestore:"publicKey"`
	Meta      keyregistry.Meta       `firestore:"meta"`
}

// materialIndexDocument reserves an (owner, material) pair. Its document id
// is ownerHash + "-" + materialHash.
type materialIndexDocument struct {
	KeyID string `firestore:"keyId"` // lookup hash of the owning record's id
}

// Store is a concrete implementation of keyregistry.Store using Firestore.
type Store struct {
	client        *firestore.Client
	records       *firestore.CollectionRef
	materialIndex *firestore.CollectionRef
	logger        zerolog.Logger
}

// New creates a Firestore-backed store over the named collection. The
// material index lives in a sibling collection named after it.
func New(client *firestore.Client, collectionName string, logger zerolog.Logger) *Store {
	return &Store{
		client:        client,
		records:       client.Collection(collectionName),
		materialIndex: client.Collection(collectionName + "-material-index"),
		logger:        logger.With().Str("component", "firestore_store").Str("collection", collectionName).Logger(),
	}
}

func materialIndexID(owner, material string) string {
	return keyregistry.LookupHash(owner) + "-" + keyregistry.LookupHash(material)
}

// Insert persists a new record. Both the record document and the material
// index reservation are created in one transaction, so a collision on either
// surfaces as a DuplicateError and nothing is written.
func (s *Store) Insert(ctx context.Context, key *keyregistry.PublicKey) (*keyregistry.Record, error) {
	idHash := keyregistry.LookupHash(key.ID)
	now := time.Now().UTC()

	doc := keyDocument{
		ID:        idHash,
		Owner:     keyregistry.LookupHash(key.Owner),
		PublicKey: key.Clone(),
		Meta:      keyregistry.Meta{Created: now, Updated: now},
	}
	material := key.Material()
	if material != "" {
		doc.Material = keyregistry.LookupHash(material)
	}

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.records.Doc(idHash), doc); err != nil {
			return err
		}
		if material == "" {
			return nil
		}
		indexDoc := s.materialIndex.Doc(materialIndexID(key.Owner, material))
		return tx.Create(indexDoc, materialIndexDocument{KeyID: idHash})
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, &keyregistry.DuplicateError{KeyID: key.ID}
		}
		s.logger.Error().Err(err).Msg("Failed to insert key record")
		return nil, fmt.Errorf("failed to insert key record %s: %w", idHash, err)
	}

	return &keyregistry.Record{PublicKey: doc.PublicKey.Clone(), Meta: doc.Meta}, nil
}

// FindByID returns the record for a key id, or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*keyregistry.Record, error) {
	idHash := keyregistry.LookupHash(id)

	snapshot, err := s.records.Doc(idHash).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, keyregistry.ErrNotFound
		}
		s.logger.Warn().Err(err).Str("key", idHash).Msg("Failed to get key record")
		return nil, fmt.Errorf("failed to get key record %s: %w", idHash, err)
	}
	return recordFromSnapshot(snapshot)
}

// FindByOwnerAndMaterial returns the record matching the hashed owner and
// material pair, or ErrNotFound.
func (s *Store) FindByOwnerAndMaterial(ctx context.Context, owner, material string) (*keyregistry.Record, error) {
	query := s.records.
		Where("owner", "==", keyregistry.LookupHash(owner)).
		Where("material", "==", keyregistry.LookupHash(material)).
		Limit(1)

	snapshots, err := query.Documents(ctx).GetAll()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Owner/material query failed")
		return nil, fmt.Errorf("failed to query key record by owner and material: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, keyregistry.ErrNotFound
	}
	return recordFromSnapshot(snapshots[0])
}

// FindAllByOwner returns the owner's records. The sign-capability filter is
// applied client-side; Firestore cannot query on field presence.
func (s *Store) FindAllByOwner(ctx context.Context, owner string, opts keyregistry.ListOptions) ([]*keyregistry.Record, error) {
	query := s.records.Where("owner", "==", keyregistry.LookupHash(owner))

	snapshots, err := query.Documents(ctx).GetAll()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Owner query failed")
		return nil, fmt.Errorf("failed to query key records by owner: %w", err)
	}

	records := make([]*keyregistry.Record, 0, len(snapshots))
	for _, snapshot := range snapshots {
		record, err := recordFromSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		if opts.Capability == keyregistry.CapabilitySign && record.PublicKey.PrivateKey == nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// UpdateDescriptive applies the descriptive fields inside a transaction and
// returns the matched count.
func (s *Store) UpdateDescriptive(ctx context.Context, id string, fields keyregistry.DescriptiveFields) (int64, error) {
	var matched int64

	idHash := keyregistry.LookupHash(id)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		docRef := s.records.Doc(idHash)
		snapshot, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				matched = 0
				return nil
			}
			return err
		}

		var doc keyDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to parse key document %s: %w", idHash, err)
		}
		if fields.Label != nil {
			doc.PublicKey.Label = *fields.Label
		}
		if fields.Type != nil {
			doc.PublicKey.Type = *fields.Type
		}
		doc.Meta.Updated = time.Now().UTC()

		matched = 1
		return tx.Set(docRef, doc)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", idHash).Msg("Descriptive update failed")
		return 0, fmt.Errorf("failed to update key record %s: %w", idHash, err)
	}
	return matched, nil
}

// UpdateStatus conditionally transitions the record's status. The read and
// the conditional write share a transaction, so concurrent revokes of the
// same key see exactly one matched update.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to keyregistry.KeyStatus, revokedAt time.Time) (int64, error) {
	var matched int64

	idHash := keyregistry.LookupHash(id)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		docRef := s.records.Doc(idHash)
		snapshot, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				matched = 0
				return nil
			}
			return err
		}

		var doc keyDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to parse key document %s: %w", idHash, err)
		}
		if doc.PublicKey.Status != from {
			matched = 0
			return nil
		}

		revoked := revokedAt
		doc.PublicKey.Status = to
		doc.PublicKey.Revoked = &revoked
		if doc.PublicKey.PrivateKey != nil {
			doc.PublicKey.PrivateKey.Status = to
			doc.PublicKey.PrivateKey.Revoked = &revoked
		}
		doc.Meta.Updated = time.Now().UTC()

		matched = 1
		return tx.Set(docRef, doc)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", idHash).Msg("Status update failed")
		return 0, fmt.Errorf("failed to update status of key record %s: %w", idHash, err)
	}
	return matched, nil
}

func recordFromSnapshot(snapshot *firestore.DocumentSnapshot) (*keyregistry.Record, error) {
	var doc keyDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse key document %s: %w", snapshot.Ref.ID, err)
	}
	return &keyregistry.Record{PublicKey: doc.PublicKey, Meta: doc.Meta}, nil
}
