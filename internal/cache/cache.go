package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a typed TTL cache.
type Cache[K ~string, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type ttlCache[K ~string, V any] struct {
	store *gocache.Cache
}

// NewTTLCache returns an in-memory cache that purges expired items every cleanup interval.
func NewTTLCache[K ~string, V any](cleanup time.Duration) Cache[K, V] {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &ttlCache[K, V]{store: gocache.New(gocache.NoExpiration, cleanup)}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	var zero V
	raw, ok := c.store.Get(string(key))
	if !ok {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(string(key), value, ttl)
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.store.Delete(string(key))
}
