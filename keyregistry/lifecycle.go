// Package keyregistry wires the key lifecycle engine and its HTTP service
// surface. The Service type implements the public Lifecycle contract over
// injected store, cache and permission collaborators.
package keyregistry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-key-registry/internal/permission"
	"github.com/tinywideclouds/go-key-registry/keyregistry/config"
	"github.com/tinywideclouds/go-key-registry/pkg/keypair"
	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Service implements keyregistry.Lifecycle. All collaborators are injected
// at construction and never change afterwards; concurrent calls share no
// other state.
type Service struct {
	store keyregistry.Store
	cache keyregistry.Cache // nil when caching is disabled
	gate  *permission.Gate
	ids   keyregistry.IDGenerator

	baseURI  string
	basePath string
	cacheTTL time.Duration

	logger zerolog.Logger
}

// NewService creates the lifecycle engine. cache may be nil to disable the
// read-through cache.
func NewService(
	cfg *config.Config,
	store keyregistry.Store,
	cache keyregistry.Cache,
	checker keyregistry.Checker,
	ids keyregistry.IDGenerator,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		gate:     permission.NewGate(checker, logger),
		ids:      ids,
		baseURI:  cfg.BaseURI,
		basePath: cfg.KeyBasePath,
		cacheTTL: cfg.Cache.TTL(),
		logger:   logger.With().Str("component", "key_lifecycle").Logger(),
	}
}

// CreatePublicKeyID composes a full key id from the configured base URI and
// path and a short slug.
func (s *Service) CreatePublicKeyID(name string) string {
	return fmt.Sprintf("%s%s/%s", s.baseURI, s.basePath, url.PathEscape(name))
}

// GeneratePublicKeyID creates a new unique key id.
func (s *Service) GeneratePublicKeyID(ctx context.Context) (string, error) {
	id, err := s.ids.GenerateID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to generate key id: %w", err)
	}
	return s.CreatePublicKeyID(id), nil
}

// AddPublicKey validates, permission-checks and persists a new key record.
// Nothing is written when any step fails.
func (s *Service) AddPublicKey(ctx context.Context, req keyregistry.AddKeyRequest) (*keyregistry.Record, error) {
	if req.PublicKey == nil {
		return nil, fmt.Errorf("%w: no public key supplied", keyregistry.ErrUnsupportedKeyType)
	}

	// Work on copies; caller-owned structures are never mutated.
	pub := req.PublicKey.Clone()
	priv := req.PrivateKey.Clone()

	if err := keypair.Validate(keypair.FromKeys(pub, priv)); err != nil {
		return nil, err
	}

	if err := s.gate.Require(ctx, req.Actor, keyregistry.PermissionCreate, pub.Owner); err != nil {
		return nil, err
	}

	if pub.ID != "" {
		s.logger.Warn().
			Str("actor", req.Actor.String()).
			Str("id", pub.ID).
			Msg("Adding public key with explicit id")
	} else {
		id, err := s.GeneratePublicKeyID(ctx)
		if err != nil {
			return nil, err
		}
		pub.ID = id
	}

	if pub.Status == "" {
		pub.Status = keyregistry.KeyStatusActive
	}
	if pub.Label == "" {
		pub.Label = fmt.Sprintf("Key %s", pub.ID)
	}
	if pub.Type == "" {
		pub.Type = keyregistry.DefaultKeyType
	}

	if priv != nil {
		if priv.Type == "" {
			priv.Type = pub.Type
		}
		if priv.Label == "" {
			priv.Label = pub.Label
		}
		priv.PublicKey = pub.ID
		pub.PrivateKey = priv
	}

	s.logger.Debug().Str("id", pub.ID).Str("owner", pub.Owner).Msg("Adding public key")

	return s.store.Insert(ctx, pub)
}

// GetPublicKey retrieves a single record. Anonymous reads by id go through
// the cache when one is configured; a hit needs no permission check because
// cached records are public-only. Private key material is returned as a
// separate result field, never nested, and only when the actor passes the
// access check.
func (s *Service) GetPublicKey(ctx context.Context, req keyregistry.GetKeyRequest) (*keyregistry.GetKeyResult, error) {
	useCache := s.cache != nil && req.Query.ByID() && req.Actor.IsAnonymous()

	if useCache {
		cached, err := s.cache.Get(ctx, req.Query.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", req.Query.ID).Msg("Cache read failed, falling through to store")
		} else if cached != nil {
			pub := cached.PublicKey.Clone()
			pub.PrivateKey = nil
			return &keyregistry.GetKeyResult{PublicKey: pub, Meta: cached.Meta}, nil
		}
	}

	var (
		record *keyregistry.Record
		err    error
	)
	if req.Query.ByID() {
		record, err = s.store.FindByID(ctx, req.Query.ID)
	} else {
		record, err = s.store.FindByOwnerAndMaterial(ctx, req.Query.Owner, req.Query.Material)
	}
	if err != nil {
		return nil, err
	}

	pub := record.PublicKey.Clone()
	priv := pub.PrivateKey
	pub.PrivateKey = nil
	result := &keyregistry.GetKeyResult{PublicKey: pub, Meta: record.Meta}

	if req.Actor.IsAnonymous() {
		if useCache {
			// Best effort; a failed write only costs the next read a store
			// round trip.
			publicOnly := &keyregistry.Record{PublicKey: pub, Meta: record.Meta}
			if err := s.cache.Set(ctx, pub.ID, publicOnly, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("id", pub.ID).Msg("Cache write failed")
			}
		}
		return result, nil
	}

	if s.gate.CanReadPrivate(ctx, req.Actor, pub.Owner) {
		result.PrivateKey = priv
	}
	return result, nil
}

// GetPublicKeys retrieves all of an owner's records in store-natural order.
// Unless the actor passes the access check, private key material is stripped
// from every result; denial never fails the read.
func (s *Service) GetPublicKeys(ctx context.Context, req keyregistry.ListKeysRequest) ([]*keyregistry.Record, error) {
	records, err := s.store.FindAllByOwner(ctx, req.Owner, req.Options)
	if err != nil {
		return nil, err
	}

	if s.gate.CanReadPrivate(ctx, req.Actor, req.Owner) {
		return records, nil
	}
	for _, record := range records {
		record.PublicKey.PrivateKey = nil
	}
	return records, nil
}

// UpdatePublicKey applies a descriptive update. The permission resource is
// resolved from the stored record's owner, never from the caller's payload,
// so a supplied owner cannot escalate anything. Status, owner and key
// material in the payload are silently ignored.
func (s *Service) UpdatePublicKey(ctx context.Context, req keyregistry.UpdateKeyRequest) error {
	if req.PublicKey == nil || req.PublicKey.ID == "" {
		return keyregistry.ErrNotFound
	}

	current, err := s.store.FindByID(ctx, req.PublicKey.ID)
	if err != nil {
		return err
	}

	if err := s.gate.Require(ctx, req.Actor, keyregistry.PermissionEdit, current.PublicKey.Owner); err != nil {
		return err
	}

	fields := keyregistry.DescriptiveFields{}
	if req.PublicKey.Label != "" {
		label := req.PublicKey.Label
		fields.Label = &label
	}
	if req.PublicKey.Type != "" {
		keyType := req.PublicKey.Type
		fields.Type = &keyType
	}

	matched, err := s.store.UpdateDescriptive(ctx, req.PublicKey.ID, fields)
	if err != nil {
		return err
	}
	if matched == 0 {
		return keyregistry.ErrNotFound
	}

	s.evict(ctx, req.PublicKey.ID)
	return nil
}

// RevokePublicKey disables an active key, stamping the revocation time on
// the record and any embedded private key. The conditional store write makes
// the transition happen exactly once: a second revoke finds no active record
// and reports not found.
func (s *Service) RevokePublicKey(ctx context.Context, req keyregistry.RevokeKeyRequest) (*keyregistry.Record, error) {
	// Unauthenticated revocation is always rejected, unlike unauthenticated
	// reads.
	if req.Actor.IsAnonymous() {
		return nil, fmt.Errorf("%w: unauthenticated", keyregistry.ErrPermissionDenied)
	}

	record, err := s.store.FindByID(ctx, req.KeyID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Require(ctx, req.Actor, keyregistry.PermissionRemove, record.PublicKey.Owner); err != nil {
		return nil, err
	}

	revokedAt := time.Now().UTC()
	matched, err := s.store.UpdateStatus(ctx, req.KeyID,
		keyregistry.KeyStatusActive, keyregistry.KeyStatusDisabled, revokedAt)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: not found or already revoked", keyregistry.ErrNotFound)
	}

	s.evict(ctx, req.KeyID)

	out := record.Clone()
	out.PublicKey.Status = keyregistry.KeyStatusDisabled
	out.PublicKey.Revoked = &revokedAt
	if out.PublicKey.PrivateKey != nil {
		out.PublicKey.PrivateKey.Status = keyregistry.KeyStatusDisabled
		out.PublicKey.PrivateKey.Revoked = &revokedAt
	}
	return out, nil
}

// ProvisionKeys inserts the configured startup keys with the internal actor,
// ignoring duplicate-insert errors so provisioning is idempotent.
func (s *Service) ProvisionKeys(ctx context.Context, keys []config.ProvisionedKey) error {
	for _, provisioned := range keys {
		pub, priv := provisioned.Keys()
		_, err := s.AddPublicKey(ctx, keyregistry.AddKeyRequest{
			Actor:      keyregistry.Internal(),
			PublicKey:  pub,
			PrivateKey: priv,
		})
		if err != nil {
			if keyregistry.IsDuplicateError(err) {
				s.logger.Debug().Str("owner", pub.Owner).Msg("Provisioned key already present")
				continue
			}
			return fmt.Errorf("failed to provision key for owner %s: %w", pub.Owner, err)
		}
	}
	return nil
}

// evict drops the cache entry for a key id after a successful write. A
// failed eviction risks serving a stale record until the TTL, so it is
// surfaced as a warning rather than swallowed.
func (s *Service) evict(ctx context.Context, keyID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, keyID); err != nil {
		s.logger.Warn().Err(err).Str("id", keyID).Msg("Cache eviction failed, stale reads possible until TTL")
	}
}
