package datastore

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CachingStoreWrapper wraps a PersistentStore with a write-through, TTL-bounded read cache.
// Item reads and per-kind "all" reads are each memoized independently; upserts write through
// immediately and then refresh the cache with the value the backend actually accepted (which
// may differ from what was requested, if a concurrent writer won the version race).
//
// Grounded on persistent_data_store_wrapper.go: negative TTL means "cache forever" (populate
// once, never expire, matching the "infinite cache mode" the underlying database drivers use
// when the caller wants to treat the local process as authoritative between restarts).
type CachingStoreWrapper struct {
	backend PersistentStore
	cache   *cache.Cache
	group   singleflight.Group
	ttl     time.Duration
	cacheOn bool
}

// NewCachingStoreWrapper wraps backend with a cache of the given ttl. A zero ttl disables
// caching entirely (every read reaches the backend); a negative ttl caches forever.
func NewCachingStoreWrapper(backend PersistentStore, ttl time.Duration) *CachingStoreWrapper {
	w := &CachingStoreWrapper{backend: backend, ttl: ttl, cacheOn: ttl != 0}
	expiration := ttl
	if ttl < 0 {
		expiration = cache.NoExpiration
	}
	if w.cacheOn {
		w.cache = cache.New(expiration, time.Minute)
	}
	return w
}

func itemCacheKey(kind DataKind, key string) string {
	return fmt.Sprintf("item:%d:%s", kind, key)
}

func allCacheKey(kind DataKind) string {
	return fmt.Sprintf("all:%d", kind)
}

// Init implements Store: writes through, then seeds both caches with the new contents.
func (w *CachingStoreWrapper) Init(allData []Collection) error {
	if err := w.backend.InitInternal(allData); err != nil {
		return err
	}
	if w.cacheOn {
		w.cache.Flush()
		for _, coll := range allData {
			items := make(map[string]ItemDescriptor, len(coll.Items))
			for _, ki := range coll.Items {
				items[ki.Key] = ki.Item
				w.cache.SetDefault(itemCacheKey(coll.Kind, ki.Key), ki.Item)
			}
			w.cache.SetDefault(allCacheKey(coll.Kind), items)
		}
		w.cache.Set("$initialized", true, cache.NoExpiration)
	}
	return nil
}

// Get implements Store, memoizing both positive and negative results.
func (w *CachingStoreWrapper) Get(kind DataKind, key string) (ItemDescriptor, error) {
	if !w.cacheOn {
		return w.backend.GetInternal(kind, key)
	}
	cacheKey := itemCacheKey(kind, key)
	if cached, ok := w.cache.Get(cacheKey); ok {
		return cached.(ItemDescriptor), nil
	}
	result, err, _ := w.group.Do(cacheKey, func() (interface{}, error) {
		item, err := w.backend.GetInternal(kind, key)
		if err != nil {
			return nil, err
		}
		w.cache.SetDefault(cacheKey, item)
		return item, nil
	})
	if err != nil {
		return ItemDescriptor{}, err
	}
	return result.(ItemDescriptor), nil
}

// All implements Store, memoizing the whole per-kind collection as one cache entry.
func (w *CachingStoreWrapper) All(kind DataKind) (map[string]ItemDescriptor, error) {
	if !w.cacheOn {
		return w.backend.GetAllInternal(kind)
	}
	cacheKey := allCacheKey(kind)
	if cached, ok := w.cache.Get(cacheKey); ok {
		return copyItems(cached.(map[string]ItemDescriptor)), nil
	}
	result, err, _ := w.group.Do(cacheKey, func() (interface{}, error) {
		items, err := w.backend.GetAllInternal(kind)
		if err != nil {
			return nil, err
		}
		w.cache.SetDefault(cacheKey, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return copyItems(result.(map[string]ItemDescriptor)), nil
}

func copyItems(in map[string]ItemDescriptor) map[string]ItemDescriptor {
	out := make(map[string]ItemDescriptor, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Upsert implements Store: writes through, updates the item cache with the post-write value,
// and invalidates the per-kind "all" cache entry so the next All() call rebuilds it.
func (w *CachingStoreWrapper) Upsert(kind DataKind, key string, item ItemDescriptor) (ItemDescriptor, error) {
	updated, err := w.backend.UpsertInternal(kind, key, item)
	if err != nil {
		return ItemDescriptor{}, err
	}
	if w.cacheOn {
		w.cache.SetDefault(itemCacheKey(kind, key), updated)
		w.cache.Delete(allCacheKey(kind))
	}
	return updated, nil
}

// Initialized implements Store, sticky once true.
func (w *CachingStoreWrapper) Initialized() (bool, error) {
	if w.cacheOn {
		if v, ok := w.cache.Get("$initialized"); ok && v.(bool) {
			return true, nil
		}
	}
	initialized, err := w.backend.InitializedInternal()
	if err != nil {
		return false, err
	}
	if initialized && w.cacheOn {
		w.cache.Set("$initialized", true, cache.NoExpiration)
	}
	return initialized, nil
}

// Close implements Store.
func (w *CachingStoreWrapper) Close() error {
	return w.backend.Close()
}
