package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/jonboulle/clockwork"
)

// staleRetention is how long entries stay on the memcached server past
// their logical TTL so GetStale can recover them.
const staleRetention = 24 * time.Hour

// NewMemcachedClient builds a memcached client from a comma-separated
// address list (e.g. "localhost:11211" or "host1:11211,host2:11211").
// timeout and maxIdleConns use package defaults when zero. One client is
// shared by every typed cache bound to it.
func NewMemcachedClient(addrs string, timeout time.Duration, maxIdleConns int) *memcache.Client {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return client
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// envelope wraps a cached value with its logical freshness window, since
// the memcached server only tracks the physical retention expiry.
type envelope[V any] struct {
	Value     V         `json:"value"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MemcachedCache implements Cache on a shared memcached client with a key
// prefix per record type. Values are JSON-serialized envelopes.
type MemcachedCache[V any] struct {
	client *memcache.Client
	clock  clockwork.Clock
	prefix string
}

// NewMemcachedCache creates a typed view over the shared client. prefix
// namespaces keys (e.g. "region:", "city:").
func NewMemcachedCache[V any](client *memcache.Client, clock clockwork.Clock, prefix string) *MemcachedCache[V] {
	return &MemcachedCache[V]{client: client, clock: clock, prefix: prefix}
}

func (c *MemcachedCache[V]) key(k string) string {
	return c.prefix + k
}

// Get implements Cache.Get. Returns false, nil on a miss or an entry past
// its logical TTL; false, err on transport errors.
func (c *MemcachedCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	if c.clock.Now().After(env.ExpiresAt) {
		var zero V
		return zero, false, nil
	}
	return env.Value, true, nil
}

// GetStale implements Cache.GetStale.
func (c *MemcachedCache[V]) GetStale(ctx context.Context, key string, maxAge time.Duration) (V, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	if c.clock.Now().Sub(env.StoredAt) > maxAge {
		var zero V
		return zero, false, nil
	}
	return env.Value, true, nil
}

func (c *MemcachedCache[V]) fetch(ctx context.Context, key string) (envelope[V], bool, error) {
	var env envelope[V]
	if ctx.Err() != nil {
		return env, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return env, false, nil
		}
		return env, false, err
	}
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return env, false, err
	}
	return env, true, nil
}

// Set implements Cache.Set. The server-side expiration covers the stale
// retention window, not just the logical TTL.
func (c *MemcachedCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := c.clock.Now()
	raw, err := json.Marshal(envelope[V]{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return err
	}
	expSec := int32((ttl + staleRetention).Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = int32(staleRetention.Seconds())
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Delete implements Cache.Delete. A miss is not an error.
func (c *MemcachedCache[V]) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := c.client.Delete(c.key(key)); err != nil && err != memcache.ErrCacheMiss {
		return err
	}
	return nil
}
