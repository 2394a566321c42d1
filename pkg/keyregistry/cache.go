package keyregistry

import (
	"context"
	"time"
)

// Cache is a read-through cache of public-only key records, keyed by key id.
// It is used exclusively on the anonymous by-id read path, so cached records
// never contain private key material and a hit never needs a permission
// check.
type Cache interface {
	// Get returns the cached record for a key id, or (nil, nil) on a miss.
	Get(ctx context.Context, keyID string) (*Record, error)

	// Set stores the public-only record under the key id for ttl.
	Set(ctx context.Context, keyID string, record *Record, ttl time.Duration) error

	// Evict removes the entry for a key id. Evicting an absent entry is not
	// an error.
	Evict(ctx context.Context, keyID string) error
}
