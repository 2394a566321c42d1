// Package rediscache implements the public-record read cache on Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Cache is a concrete implementation of keyregistry.Cache backed by a Redis
// string keyspace. Entries are JSON-encoded records stored under a fixed
// prefix plus the lookup hash of the key id, which keeps cache keys bounded
// in length and keeps raw identifiers out of the key namespace.
type Cache struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// New creates a cache over the given client. prefix namespaces this
// service's entries.
func New(client *redis.Client, prefix string, logger zerolog.Logger) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redis_cache").Logger(),
	}
}

func (c *Cache) cacheKey(keyID string) string {
	return c.prefix + keyregistry.LookupHash(keyID)
}

// Get returns the cached record for a key id, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, keyID string) (*keyregistry.Record, error) {
	payload, err := c.client.Get(ctx, c.cacheKey(keyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var record keyregistry.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		// A corrupt entry is as good as a miss, but worth knowing about.
		c.logger.Warn().Err(err).Msg("Discarding unparsable cache entry")
		return nil, nil
	}
	return &record, nil
}

// Set stores the record under the key id with the given TTL.
func (c *Cache) Set(ctx context.Context, keyID string, record *keyregistry.Record, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(keyID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Evict removes the entry for a key id.
func (c *Cache) Evict(ctx context.Context, keyID string) error {
	if err := c.client.Del(ctx, c.cacheKey(keyID)).Err(); err != nil {
		return fmt.Errorf("cache evict failed: %w", err)
	}
	return nil
}
