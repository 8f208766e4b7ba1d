// Package cache implements provider.Cache over hashicorp/golang-lru,
// backing the cache backend class of the Agent and Session layers. Entries
// carry their own TTL, checked lazily on Get the way an in-process
// session cache typically trades memory for a background sweeper.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mkc-dev/mkc/internal/provider"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Cache is a bounded, TTL-aware LRU implementing provider.Cache.
type Cache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, entry]
	now   func() time.Time
}

var _ provider.Cache = (*Cache)(nil)

// New builds a Cache with the given eviction capacity
// (config.MemoryConfig.WorkingCapacity).
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = 20000
	}
	inner, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner, now: time.Now}, nil
}

func (c *Cache) Set(key string, value []byte, ttlSeconds int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if ttlSeconds > 0 {
		expiresAt = c.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	c.inner.Add(key, entry{value: value, expiresAt: expiresAt})
	return nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.inner.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(key)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}
