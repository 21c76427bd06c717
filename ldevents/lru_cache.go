package ldevents

import "container/list"

// lruCache is a fixed-capacity, least-recently-seen-evicting set of strings used to deduplicate user
// keys seen by the event dispatcher. It has no per-item expiry; the dispatcher clears it
// wholesale on a ticker (userKeysFlushInterval) instead, matching the vendored event processor's
// "reset" cadence rather than a true per-entry TTL.
type lruCache struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newLruCache(capacity int) lruCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return lruCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// add records key as seen and returns whether it was already present. Adding an already-present
// key refreshes its recency.
func (c *lruCache) add(key string) bool {
	if el, ok := c.index[key]; ok {
		c.order.MoveToFront(el)
		return true
	}
	el := c.order.PushFront(key)
	c.index[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(string))
		}
	}
	return false
}

func (c *lruCache) clear() {
	c.order = list.New()
	c.index = make(map[string]*list.Element)
}
