package datastore

import "sync"

// MemoryStore is the reference in-memory Store implementation. It is safe for concurrent use;
// reads take a read lock and never block each other, writes take the write lock.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	data        map[DataKind]map[string]ItemDescriptor
}

// NewMemoryStore returns an empty, uninitialized MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[DataKind]map[string]ItemDescriptor{
			Features: {},
			Segments: {},
		},
	}
}

// Init implements Store.
func (m *MemoryStore) Init(allData []Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	newData := map[DataKind]map[string]ItemDescriptor{
		Features: {},
		Segments: {},
	}
	for _, coll := range allData {
		items := make(map[string]ItemDescriptor, len(coll.Items))
		for _, ki := range coll.Items {
			items[ki.Key] = ki.Item
		}
		newData[coll.Kind] = items
	}
	m.data = newData
	m.initialized = true
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(kind DataKind, key string) (ItemDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if item, ok := m.data[kind][key]; ok {
		return item, nil
	}
	return NotFound, nil
}

// All implements Store.
func (m *MemoryStore) All(kind DataKind) (map[string]ItemDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ItemDescriptor, len(m.data[kind]))
	for k, v := range m.data[kind] {
		out[k] = v
	}
	return out, nil
}

// Upsert implements Store, refusing writes at or below the current version.
func (m *MemoryStore) Upsert(kind DataKind, key string, item ItemDescriptor) (ItemDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, found := m.data[kind][key]
	if found && existing.Version >= item.Version {
		return existing, nil
	}
	m.data[kind][key] = item
	return item, nil
}

// Initialized implements Store.
func (m *MemoryStore) Initialized() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized, nil
}

// Close implements Store; the in-memory store owns no external resources.
func (m *MemoryStore) Close() error { return nil }
