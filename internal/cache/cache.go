// Package cache provides TTL caches for grid records. Entries are value
// objects replaced wholesale on refresh; expired entries linger until
// overwritten so the stores can fall back to the last good copy when the
// upstream is down.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache is the interface for record caching implementations.
// Get returns only fresh entries; GetStale also returns expired entries
// younger than maxAge. Set stores a value with a TTL, Delete removes one key.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	GetStale(ctx context.Context, key string, maxAge time.Duration) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryCache implements Cache with a mutex-guarded map. Time comes from
// an injected clock so TTL behavior is testable without sleeping.
type InMemoryCache[V any] struct {
	clock clockwork.Clock
	mu    sync.Mutex
	data  map[string]entry[V]
}

// entry stores a cached value with its write time and expiry.
type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache using the given clock.
// Pass clockwork.NewRealClock() in production.
func NewInMemoryCache[V any](clock clockwork.Clock) *InMemoryCache[V] {
	return &InMemoryCache[V]{
		clock: clock,
		data:  make(map[string]entry[V]),
	}
}

// Get retrieves the value for key if present and not expired.
// Returns (value, true, nil) on a fresh hit, (zero, false, nil) otherwise.
// Expired entries are kept for GetStale rather than removed.
func (c *InMemoryCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || c.clock.Now().After(e.expiresAt) {
		return zero, false, nil
	}
	return e.value, true, nil
}

// GetStale retrieves the value for key if it was stored within maxAge,
// regardless of TTL expiry. Used to serve the last good copy on upstream
// failure.
func (c *InMemoryCache[V]) GetStale(ctx context.Context, key string, maxAge time.Duration) (V, bool, error) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || c.clock.Now().Sub(e.storedAt) > maxAge {
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set stores the value with the specified TTL. A later Set for the same key
// replaces the entry wholesale.
func (c *InMemoryCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes the entry for key if present.
func (c *InMemoryCache[V]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
