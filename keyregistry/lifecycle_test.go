package keyregistry_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-key-registry/internal/cache/memcache"
	"github.com/tinywideclouds/go-key-registry/internal/idgen"
	"github.com/tinywideclouds/go-key-registry/internal/permission"
	"github.com/tinywideclouds/go-key-registry/internal/storage/inmemory"
	"github.com/tinywideclouds/go-key-registry/keyregistry"
	"github.com/tinywideclouds/go-key-registry/keyregistry/config"
	registry "github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

const (
	testBaseURI = "https://registry.example.com"
	aliceID     = "urn:user:alice"
	bobID       = "urn:user:bob"
)

func alice() registry.Actor { return registry.Identity(aliceID) }
func bob() registry.Actor   { return registry.Identity(bobID) }

// newTestService wires a lifecycle engine over the in-memory store and cache
// with the owner-grants permission authority.
func newTestService(t *testing.T) (context.Context, *keyregistry.Service) {
	t.Helper()
	cfg := &config.Config{
		BaseURI:     testBaseURI,
		KeyBasePath: "/keys",
		Cache:       config.CacheConfig{Enabled: true, TTLSeconds: 300},
	}
	service := keyregistry.NewService(
		cfg,
		inmemory.New(),
		memcache.New(),
		permission.NewOwnerChecker(nil),
		idgen.New(),
		zerolog.Nop(),
	)
	return context.Background(), service
}

// newEd25519Pair produces a matching key pair whose base58 encodings hit the
// canonical 44/88 character lengths.
func newEd25519Pair(t *testing.T) (string, string) {
	t.Helper()
	for i := 0; i < 200; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		pub58 := base58.Encode(pub)
		priv58 := base58.Encode(priv)
		if len(pub58) == 44 && len(priv58) == 88 {
			return pub58, priv58
		}
	}
	t.Fatal("could not generate canonical-length ed25519 key material")
	return "", ""
}

// addKey inserts a fresh key pair for owner and returns the stored record.
func addKey(t *testing.T, ctx context.Context, service *keyregistry.Service, actor registry.Actor, owner string, withPrivate bool) *registry.Record {
	t.Helper()
	pub58, priv58 := newEd25519Pair(t)
	req := registry.AddKeyRequest{
		Actor:     actor,
		PublicKey: &registry.PublicKey{Owner: owner, PublicKeyBase58: pub58},
	}
	if withPrivate {
		req.PrivateKey = &registry.PrivateKey{PrivateKeyBase58: priv58}
	}
	record, err := service.AddPublicKey(ctx, req)
	require.NoError(t, err)
	return record
}

func TestService_CreatePublicKeyID(t *testing.T) {
	_, service := newTestService(t)

	assert.Equal(t, testBaseURI+"/keys/abc", service.CreatePublicKeyID("abc"))
	// Slugs are path-escaped, never spliced raw.
	assert.Equal(t, testBaseURI+"/keys/a%2Fb", service.CreatePublicKeyID("a/b"))
}

func TestService_AddPublicKey(t *testing.T) {
	t.Run("Success - defaults applied and pair linked", func(t *testing.T) {
		ctx, service := newTestService(t)

		record := addKey(t, ctx, service, alice(), aliceID, true)

		pub := record.PublicKey
		assert.True(t, strings.HasPrefix(pub.ID, testBaseURI+"/keys/"))
		assert.Equal(t, registry.KeyStatusActive, pub.Status)
		assert.Equal(t, registry.DefaultKeyType, pub.Type)
		assert.Equal(t, "Key "+pub.ID, pub.Label)

		require.NotNil(t, pub.PrivateKey)
		assert.Equal(t, pub.ID, pub.PrivateKey.PublicKey)
		assert.Equal(t, pub.Type, pub.PrivateKey.Type)
		assert.Equal(t, pub.Label, pub.PrivateKey.Label)
	})

	t.Run("Success - explicit id honored", func(t *testing.T) {
		ctx, service := newTestService(t)
		pub58, _ := newEd25519Pair(t)

		record, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor: alice(),
			PublicKey: &registry.PublicKey{
				ID:              testBaseURI + "/keys/pinned",
				Owner:           aliceID,
				PublicKeyBase58: pub58,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, testBaseURI+"/keys/pinned", record.PublicKey.ID)
	})

	t.Run("Failure - validation precedes permission", func(t *testing.T) {
		ctx, service := newTestService(t)

		// Anonymous and malformed: the material error must win.
		_, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor:     registry.Anonymous(),
			PublicKey: &registry.PublicKey{Owner: aliceID, PublicKeyBase58: "too-short"},
		})
		assert.ErrorIs(t, err, registry.ErrInvalidPublicKey)
		assert.NotErrorIs(t, err, registry.ErrPermissionDenied)
	})

	t.Run("Failure - anonymous actor denied", func(t *testing.T) {
		ctx, service := newTestService(t)
		pub58, _ := newEd25519Pair(t)

		_, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor:     registry.Anonymous(),
			PublicKey: &registry.PublicKey{Owner: aliceID, PublicKeyBase58: pub58},
		})
		assert.ErrorIs(t, err, registry.ErrPermissionDenied)
	})

	t.Run("Failure - non-owner denied", func(t *testing.T) {
		ctx, service := newTestService(t)
		pub58, _ := newEd25519Pair(t)

		_, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor:     bob(),
			PublicKey: &registry.PublicKey{Owner: aliceID, PublicKeyBase58: pub58},
		})
		assert.ErrorIs(t, err, registry.ErrPermissionDenied)
	})

	t.Run("Failure - mismatched pair rejected", func(t *testing.T) {
		ctx, service := newTestService(t)
		pub58, _ := newEd25519Pair(t)
		_, otherPriv58 := newEd25519Pair(t)

		_, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor:      alice(),
			PublicKey:  &registry.PublicKey{Owner: aliceID, PublicKeyBase58: pub58},
			PrivateKey: &registry.PrivateKey{PrivateKeyBase58: otherPriv58},
		})
		assert.ErrorIs(t, err, registry.ErrKeyPairMismatch)
	})

	t.Run("Failure - duplicate material for same owner", func(t *testing.T) {
		ctx, service := newTestService(t)
		pub58, _ := newEd25519Pair(t)

		_, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor:     alice(),
			PublicKey: &registry.PublicKey{Owner: aliceID, PublicKeyBase58: pub58},
		})
		require.NoError(t, err)

		_, err = service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor:     alice(),
			PublicKey: &registry.PublicKey{Owner: aliceID, PublicKeyBase58: pub58},
		})
		assert.True(t, registry.IsDuplicateError(err))
	})

	t.Run("caller's structures are never mutated", func(t *testing.T) {
		ctx, service := newTestService(t)
		pub58, priv58 := newEd25519Pair(t)

		pub := &registry.PublicKey{Owner: aliceID, PublicKeyBase58: pub58}
		priv := &registry.PrivateKey{PrivateKeyBase58: priv58}
		_, err := service.AddPublicKey(ctx, registry.AddKeyRequest{
			Actor: alice(), PublicKey: pub, PrivateKey: priv,
		})
		require.NoError(t, err)

		assert.Empty(t, pub.ID)
		assert.Nil(t, pub.PrivateKey)
		assert.Empty(t, priv.PublicKey)
	})
}

func TestService_GetPublicKey(t *testing.T) {
	t.Run("owner sees private material as a separate field", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, true)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: alice(),
			Query: registry.KeyQuery{ID: record.PublicKey.ID},
		})
		require.NoError(t, err)
		assert.Nil(t, result.PublicKey.PrivateKey)
		require.NotNil(t, result.PrivateKey)
		assert.Equal(t, record.PublicKey.ID, result.PrivateKey.PublicKey)
	})

	t.Run("non-owner read narrows to public fields without erroring", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, true)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: bob(),
			Query: registry.KeyQuery{ID: record.PublicKey.ID},
		})
		require.NoError(t, err)
		assert.Nil(t, result.PrivateKey)
		assert.Nil(t, result.PublicKey.PrivateKey)
	})

	t.Run("anonymous read is public-only", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, true)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: registry.Anonymous(),
			Query: registry.KeyQuery{ID: record.PublicKey.ID},
		})
		require.NoError(t, err)
		assert.Nil(t, result.PrivateKey)
		assert.Nil(t, result.PublicKey.PrivateKey)
		assert.Equal(t, record.PublicKey.PublicKeyBase58, result.PublicKey.PublicKeyBase58)
	})

	t.Run("lookup by owner and material", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: alice(),
			Query: registry.KeyQuery{
				Owner:    aliceID,
				Material: record.PublicKey.PublicKeyBase58,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, record.PublicKey.ID, result.PublicKey.ID)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		ctx, service := newTestService(t)

		_, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: alice(),
			Query: registry.KeyQuery{ID: testBaseURI + "/keys/missing"},
		})
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})
}

func TestService_GetPublicKeys(t *testing.T) {
	ctx, service := newTestService(t)
	withPriv := addKey(t, ctx, service, alice(), aliceID, true)
	addKey(t, ctx, service, alice(), aliceID, false)
	addKey(t, ctx, service, bob(), bobID, false)

	t.Run("owner sees private material", func(t *testing.T) {
		records, err := service.GetPublicKeys(ctx, registry.ListKeysRequest{
			Actor: alice(), Owner: aliceID,
		})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.NotNil(t, records[0].PublicKey.PrivateKey)
		assert.Nil(t, records[1].PublicKey.PrivateKey)
	})

	t.Run("non-owner gets every record stripped", func(t *testing.T) {
		records, err := service.GetPublicKeys(ctx, registry.ListKeysRequest{
			Actor: bob(), Owner: aliceID,
		})
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, record := range records {
			assert.Nil(t, record.PublicKey.PrivateKey)
		}
	})

	t.Run("sign capability keeps only signing-capable keys", func(t *testing.T) {
		records, err := service.GetPublicKeys(ctx, registry.ListKeysRequest{
			Actor:   alice(),
			Owner:   aliceID,
			Options: registry.ListOptions{Capability: registry.CapabilitySign},
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, withPriv.PublicKey.ID, records[0].PublicKey.ID)
	})
}

func TestService_UpdatePublicKey(t *testing.T) {
	t.Run("Success - descriptive fields only", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)

		err := service.UpdatePublicKey(ctx, registry.UpdateKeyRequest{
			Actor: alice(),
			PublicKey: &registry.PublicKey{
				ID:    record.PublicKey.ID,
				Label: "Signing key 2026",
				// A hostile payload: none of these may take effect.
				Owner:  bobID,
				Status: registry.KeyStatusDisabled,
			},
		})
		require.NoError(t, err)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: alice(),
			Query: registry.KeyQuery{ID: record.PublicKey.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, "Signing key 2026", result.PublicKey.Label)
		assert.Equal(t, aliceID, result.PublicKey.Owner)
		assert.Equal(t, registry.KeyStatusActive, result.PublicKey.Status)
	})

	t.Run("permission resolves against the stored owner", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)

		// Bob claims to own the key in the payload; the stored record says
		// otherwise.
		err := service.UpdatePublicKey(ctx, registry.UpdateKeyRequest{
			Actor: bob(),
			PublicKey: &registry.PublicKey{
				ID:    record.PublicKey.ID,
				Owner: bobID,
				Label: "mine now",
			},
		})
		assert.ErrorIs(t, err, registry.ErrPermissionDenied)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		ctx, service := newTestService(t)

		err := service.UpdatePublicKey(ctx, registry.UpdateKeyRequest{
			Actor:     alice(),
			PublicKey: &registry.PublicKey{ID: testBaseURI + "/keys/missing", Label: "x"},
		})
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("anonymous reads see the update immediately", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)
		keyID := record.PublicKey.ID

		// Prime the cache with an anonymous read.
		_, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: registry.Anonymous(),
			Query: registry.KeyQuery{ID: keyID},
		})
		require.NoError(t, err)

		err = service.UpdatePublicKey(ctx, registry.UpdateKeyRequest{
			Actor:     alice(),
			PublicKey: &registry.PublicKey{ID: keyID, Label: "rotated"},
		})
		require.NoError(t, err)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: registry.Anonymous(),
			Query: registry.KeyQuery{ID: keyID},
		})
		require.NoError(t, err)
		assert.Equal(t, "rotated", result.PublicKey.Label)
	})
}

func TestService_RevokePublicKey(t *testing.T) {
	t.Run("Success - pair disabled and stamped", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, true)

		revoked, err := service.RevokePublicKey(ctx, registry.RevokeKeyRequest{
			Actor: alice(),
			KeyID: record.PublicKey.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, registry.KeyStatusDisabled, revoked.PublicKey.Status)
		require.NotNil(t, revoked.PublicKey.Revoked)
		require.NotNil(t, revoked.PublicKey.PrivateKey)
		assert.Equal(t, registry.KeyStatusDisabled, revoked.PublicKey.PrivateKey.Status)
		require.NotNil(t, revoked.PublicKey.PrivateKey.Revoked)
	})

	t.Run("revocation happens exactly once", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)

		_, err := service.RevokePublicKey(ctx, registry.RevokeKeyRequest{
			Actor: alice(), KeyID: record.PublicKey.ID,
		})
		require.NoError(t, err)

		_, err = service.RevokePublicKey(ctx, registry.RevokeKeyRequest{
			Actor: alice(), KeyID: record.PublicKey.ID,
		})
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("Failure - anonymous actor rejected up front", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)

		_, err := service.RevokePublicKey(ctx, registry.RevokeKeyRequest{
			Actor: registry.Anonymous(), KeyID: record.PublicKey.ID,
		})
		assert.ErrorIs(t, err, registry.ErrPermissionDenied)
	})

	t.Run("Failure - non-owner denied", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)

		_, err := service.RevokePublicKey(ctx, registry.RevokeKeyRequest{
			Actor: bob(), KeyID: record.PublicKey.ID,
		})
		assert.ErrorIs(t, err, registry.ErrPermissionDenied)
	})

	t.Run("anonymous reads see the revocation immediately", func(t *testing.T) {
		ctx, service := newTestService(t)
		record := addKey(t, ctx, service, alice(), aliceID, false)
		keyID := record.PublicKey.ID

		_, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: registry.Anonymous(),
			Query: registry.KeyQuery{ID: keyID},
		})
		require.NoError(t, err)

		_, err = service.RevokePublicKey(ctx, registry.RevokeKeyRequest{
			Actor: alice(), KeyID: keyID,
		})
		require.NoError(t, err)

		result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
			Actor: registry.Anonymous(),
			Query: registry.KeyQuery{ID: keyID},
		})
		require.NoError(t, err)
		assert.Equal(t, registry.KeyStatusDisabled, result.PublicKey.Status)
	})
}

func TestService_ProvisionKeys(t *testing.T) {
	ctx, service := newTestService(t)
	pub58, priv58 := newEd25519Pair(t)

	keys := []config.ProvisionedKey{{
		PublicKey: config.ProvisionedPublicKey{
			ID:              testBaseURI + "/keys/service-signing",
			Owner:           "urn:service:registry",
			Label:           "Service signing key",
			PublicKeyBase58: pub58,
		},
		PrivateKey: &config.ProvisionedPrivateKey{
			PrivateKeyBase58: priv58,
		},
	}}

	require.NoError(t, service.ProvisionKeys(ctx, keys))

	// A second run hits the duplicate path and stays silent.
	require.NoError(t, service.ProvisionKeys(ctx, keys))

	result, err := service.GetPublicKey(ctx, registry.GetKeyRequest{
		Actor: registry.Internal(),
		Query: registry.KeyQuery{ID: testBaseURI + "/keys/service-signing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Service signing key", result.PublicKey.Label)
	require.NotNil(t, result.PrivateKey)
}
