// Package bigsegments implements the evaluator-facing side of big-segment support: a
// user-membership cache backed by an external store, and a background poller that watches the
// store's health.
//
// No reference implementation for this side exists anywhere in the retrieval pack (only the
// writer/synchronizer side, which populates the store this package reads from). The cache and
// poller here are composed from the same primitives the data store's caching wrapper already
// uses: a fixed-size LRU for the membership cache, singleflight for per-user fetch dedup, and
// the shared generic Broadcaster for status-change notifications.
package bigsegments

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// StoreMetadata reports the last time the external synchronizer updated the store.
type StoreMetadata struct {
	LastUpToDate ldtime.UnixMillisecondTime
}

// IsDefined reports whether the store has ever been synchronized.
func (m StoreMetadata) IsDefined() bool {
	return m.LastUpToDate != 0
}

// StoreMembership is the raw per-user record held in an external big-segment store: the set of
// segment references (in the wire form "segmentKey" or "segmentKey_g" for unbounded groups) the
// user is explicitly included in or excluded from.
type StoreMembership struct {
	Included []string
	Excluded []string
}

// Store is the external big-segment store this wrapper reads from. An implementation is
// specific to one environment. Store implementations live outside this package (Redis,
// DynamoDB, etc.); this package only depends on the interface.
type Store interface {
	// GetMetadata returns the store's last-synchronized timestamp. A zero StoreMetadata means
	// the store has never been synchronized.
	GetMetadata() (StoreMetadata, error)

	// GetUserMembership returns the membership record for the given hashed user key. A record
	// with no included or excluded segments is a valid response and is cached like any other.
	GetUserMembership(userHash string) (StoreMembership, error)

	Close() error
}
