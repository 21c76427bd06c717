package bigsegments

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// expiringLRUCache bounds a membership cache both by entry count (via the underlying LRU) and
// by age (via a stored expiry checked on read). Neither hashicorp/golang-lru nor go-cache alone
// covers both axes: golang-lru has no TTL, go-cache has no size bound.
type expiringLRUCache struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
}

type cacheEntry struct {
	membership StoreMembership
	expiresAt  time.Time
}

func newExpiringLRUCache(size int, ttl time.Duration) *expiringLRUCache {
	if size <= 0 {
		size = 1000
	}
	c, _ := lru.New(size)
	return &expiringLRUCache{cache: c, ttl: ttl, now: time.Now}
}

func (c *expiringLRUCache) get(key string) (StoreMembership, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(key)
	if !ok {
		return StoreMembership{}, false
	}
	entry := v.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return StoreMembership{}, false
	}
	return entry.membership, true
}

func (c *expiringLRUCache) add(key string, m StoreMembership) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, &cacheEntry{membership: m, expiresAt: c.now().Add(c.ttl)})
}

func (c *expiringLRUCache) removeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
