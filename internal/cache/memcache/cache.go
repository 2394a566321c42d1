// Package memcache provides a thread-safe expiring in-memory record cache,
// used for local run mode and unit tests.
package memcache

import (
	"context"
	"sync"
	"time"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

type entry struct {
	record  *keyregistry.Record
	expires time.Time
}

// Cache is a concrete in-memory implementation of keyregistry.Cache. Expired
// entries are dropped lazily on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached record for a key id, or (nil, nil) on a miss.
func (c *Cache) Get(_ context.Context, keyID string) (*keyregistry.Record, error) {
	c.mu.RLock()
	e, ok := c.entries[keyID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, keyID)
		c.mu.Unlock()
		return nil, nil
	}
	return e.record.Clone(), nil
}

// Set stores the record under the key id for ttl.
func (c *Cache) Set(_ context.Context, keyID string, record *keyregistry.Record, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyID] = entry{record: record.Clone(), expires: time.Now().Add(ttl)}
	return nil
}

// Evict removes the entry for a key id.
func (c *Cache) Evict(_ context.Context, keyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, keyID)
	return nil
}
