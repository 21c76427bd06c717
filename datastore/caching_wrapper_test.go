package datastore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory PersistentStore that counts calls, for asserting the
// caching wrapper actually memoizes reads and invalidates on writes.
type fakeBackend struct {
	mu          sync.Mutex
	data        map[DataKind]map[string]ItemDescriptor
	initialized bool
	getCalls    int
	allCalls    int
	closed      bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[DataKind]map[string]ItemDescriptor{Features: {}, Segments: {}}}
}

func (f *fakeBackend) InitInternal(allData []Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	newData := map[DataKind]map[string]ItemDescriptor{Features: {}, Segments: {}}
	for _, coll := range allData {
		items := make(map[string]ItemDescriptor, len(coll.Items))
		for _, ki := range coll.Items {
			items[ki.Key] = ki.Item
		}
		newData[coll.Kind] = items
	}
	f.data = newData
	f.initialized = true
	return nil
}

func (f *fakeBackend) GetInternal(kind DataKind, key string) (ItemDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if item, ok := f.data[kind][key]; ok {
		return item, nil
	}
	return NotFound, nil
}

func (f *fakeBackend) GetAllInternal(kind DataKind) (map[string]ItemDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	out := make(map[string]ItemDescriptor, len(f.data[kind]))
	for k, v := range f.data[kind] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) UpsertInternal(kind DataKind, key string, item ItemDescriptor) (ItemDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.data[kind][key]
	if ok && current.Version >= item.Version {
		return current, nil
	}
	f.data[kind][key] = item
	return item, nil
}

func (f *fakeBackend) InitializedInternal() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestCachingWrapperMemoizesReads(t *testing.T) {
	backend := newFakeBackend()
	require.NoError(t, backend.InitInternal([]Collection{
		{Kind: Features, Items: []KeyedItemDescriptor{{Key: "f1", Item: ItemDescriptor{Version: 1, Item: "v1"}}}},
	}))

	w := NewCachingStoreWrapper(backend, time.Minute)
	_, _ = w.Get(Features, "f1")
	_, _ = w.Get(Features, "f1")
	_, _ = w.Get(Features, "f1")

	assert.Equal(t, 1, backend.getCalls, "a cache hit must not reach the backend again")
}

func TestCachingWrapperZeroTTLDisablesCaching(t *testing.T) {
	backend := newFakeBackend()
	require.NoError(t, backend.InitInternal([]Collection{
		{Kind: Features, Items: []KeyedItemDescriptor{{Key: "f1", Item: ItemDescriptor{Version: 1, Item: "v1"}}}},
	}))

	w := NewCachingStoreWrapper(backend, 0)
	_, _ = w.Get(Features, "f1")
	_, _ = w.Get(Features, "f1")

	assert.Equal(t, 2, backend.getCalls, "ttl=0 means every read reaches the backend")
}

func TestCachingWrapperUpsertInvalidatesAllCacheButRefreshesItemCache(t *testing.T) {
	backend := newFakeBackend()
	require.NoError(t, backend.InitInternal(nil))
	w := NewCachingStoreWrapper(backend, time.Minute)

	all, err := w.All(Features)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 1, backend.allCalls)

	_, err = w.Upsert(Features, "f1", ItemDescriptor{Version: 1, Item: "v1"})
	require.NoError(t, err)

	// The item cache was refreshed by the upsert itself, so this Get should not hit the backend.
	item, err := w.Get(Features, "f1")
	require.NoError(t, err)
	assert.Equal(t, "v1", item.Item)
	assert.Equal(t, 0, backend.getCalls, "Upsert must populate the item cache directly")

	// The "all" cache was invalidated by the upsert, so this must recompute from the backend.
	all, err = w.All(Features)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 2, backend.allCalls)
}

func TestCachingWrapperUpsertRefusesStaleVersion(t *testing.T) {
	backend := newFakeBackend()
	require.NoError(t, backend.InitInternal(nil))
	w := NewCachingStoreWrapper(backend, time.Minute)

	_, err := w.Upsert(Features, "f1", ItemDescriptor{Version: 5, Item: "new"})
	require.NoError(t, err)
	current, err := w.Upsert(Features, "f1", ItemDescriptor{Version: 3, Item: "stale"})
	require.NoError(t, err)
	assert.Equal(t, "new", current.Item, "a lower version must not overwrite the current item")
}

func TestCachingWrapperInitializedIsStickyOnceTrue(t *testing.T) {
	backend := newFakeBackend()
	w := NewCachingStoreWrapper(backend, time.Minute)

	initialized, err := w.Initialized()
	require.NoError(t, err)
	assert.False(t, initialized)

	require.NoError(t, backend.InitInternal(nil))
	initialized, err = w.Initialized()
	require.NoError(t, err)
	assert.True(t, initialized)

	backend.initialized = false // simulate the backend forgetting, e.g. a restarted database
	initialized, err = w.Initialized()
	require.NoError(t, err)
	assert.True(t, initialized, "once cached as true, Initialized must not flip back to false")
}

func TestCachingWrapperCloseClosesBackend(t *testing.T) {
	backend := newFakeBackend()
	w := NewCachingStoreWrapper(backend, time.Minute)
	require.NoError(t, w.Close())
	assert.True(t, backend.closed)
}
