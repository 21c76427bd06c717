package datastore

// PersistentStore is the plug-in contract a database-backed store implements. It is
// intentionally narrower than Store: a persistent backend never needs its own caching (that is
// CachingStoreWrapper's job) and never needs to reason about tombstone filtering (that is the
// caller's job, per the core spec's store invariants).
type PersistentStore interface {
	// InitInternal writes a full replacement of every kind's contents.
	InitInternal(allData []Collection) error

	// GetInternal returns the current item for (kind,key), or NotFound.
	GetInternal(kind DataKind, key string) (ItemDescriptor, error)

	// GetAllInternal returns every current item of the given kind.
	GetAllInternal(kind DataKind) (map[string]ItemDescriptor, error)

	// UpsertInternal applies the version-monotonic upsert rule and returns the item that is
	// now current.
	UpsertInternal(kind DataKind, key string, item ItemDescriptor) (ItemDescriptor, error)

	// InitializedInternal reports whether InitInternal has ever succeeded.
	InitializedInternal() (bool, error)

	// Close releases the backend's resources (connections, file handles, etc).
	Close() error
}
