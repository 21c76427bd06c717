// Package datastore implements the versioned key/value store abstraction, its write-through
// caching wrapper, and the topological sort used to order flags for store initialization.
package datastore

import "github.com/launchdarkly/go-server-sdk-core/ldmodel"

// DataKind identifies one of the two collections the store holds.
type DataKind int

// The two data kinds a Store holds.
const (
	Features DataKind = iota
	Segments
)

// String renders the kind's wire-format name.
func (k DataKind) String() string {
	if k == Segments {
		return "segments"
	}
	return "features"
}

// ItemDescriptor pairs a store item with its version. A tombstone is represented by a nil
// Item with the version the deletion was recorded at.
type ItemDescriptor struct {
	Version int
	Item    interface{}
}

// NotFound is the descriptor a Get returns for a key the store has no record of at all
// (distinct from a tombstone, which does have a version).
var NotFound = ItemDescriptor{Version: -1}

// IsDeleted reports whether this descriptor represents a tombstone or missing item.
func (d ItemDescriptor) IsDeleted() bool { return d.Item == nil }

// KeyedItemDescriptor pairs an ItemDescriptor with the key it was stored under.
type KeyedItemDescriptor struct {
	Key  string
	Item ItemDescriptor
}

// Collection is one kind's worth of items, as passed to Init.
type Collection struct {
	Kind  DataKind
	Items []KeyedItemDescriptor
}

// Store is the core's view of the data store: an in-memory or persistent-backed versioned
// key/value store over {Features, Segments}. Implementations MUST enforce the version-monotonic
// upsert rule described on Upsert.
type Store interface {
	// Init atomically replaces the contents of every kind and sets Initialized to true.
	Init(allData []Collection) error

	// Get returns the current item for (kind,key), or NotFound if there is none. A tombstone
	// is returned with its version and a nil Item.
	Get(kind DataKind, key string) (ItemDescriptor, error)

	// All returns every current item of the given kind, including tombstones.
	All(kind DataKind) (map[string]ItemDescriptor, error)

	// Upsert writes item under key if item.Version is greater than the current version (a
	// non-existent current item is treated as version -infinity), returning the item that is
	// now current (which may be the pre-existing item if the write was refused). Deletes are
	// expressed as an Upsert of an ItemDescriptor with a nil Item.
	Upsert(kind DataKind, key string, item ItemDescriptor) (ItemDescriptor, error)

	// Initialized reports whether Init has ever succeeded.
	Initialized() (bool, error)

	// Close releases any resources the store owns.
	Close() error
}

// ToFlag returns item.Item as a *ldmodel.FeatureFlag, or nil if it is a tombstone or the wrong
// type.
func ToFlag(item ItemDescriptor) *ldmodel.FeatureFlag {
	if f, ok := item.Item.(*ldmodel.FeatureFlag); ok {
		return f
	}
	return nil
}

// ToSegment returns item.Item as a *ldmodel.Segment, or nil if it is a tombstone or the wrong
// type.
func ToSegment(item ItemDescriptor) *ldmodel.Segment {
	if s, ok := item.Item.(*ldmodel.Segment); ok {
		return s
	}
	return nil
}
