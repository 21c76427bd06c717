package bigsegments

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"

	"github.com/launchdarkly/go-server-sdk-core/evaluation"
	"github.com/launchdarkly/go-server-sdk-core/internal/broadcast"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
)

const (
	// DefaultUserCacheSize is the default membership-cache entry limit.
	DefaultUserCacheSize = 1000
	// DefaultUserCacheTime is the default membership-cache entry TTL.
	DefaultUserCacheTime = 5 * time.Minute
	// DefaultStatusPollInterval is the default interval between store metadata checks.
	DefaultStatusPollInterval = 5 * time.Second
	// DefaultStaleAfter is the default age past which a store is considered stale.
	DefaultStaleAfter = 2 * time.Minute
)

// Config controls the membership cache and the status poller.
type Config struct {
	UserCacheSize      int
	UserCacheTime      time.Duration
	StatusPollInterval time.Duration
	StaleAfter         time.Duration
	Loggers            ldlog.Loggers
}

func (c Config) withDefaults() Config {
	if c.UserCacheSize <= 0 {
		c.UserCacheSize = DefaultUserCacheSize
	}
	if c.UserCacheTime <= 0 {
		c.UserCacheTime = DefaultUserCacheTime
	}
	if c.StatusPollInterval <= 0 {
		c.StatusPollInterval = DefaultStatusPollInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	return c
}

// Wrapper is the evaluator-facing big-segment membership provider: it satisfies
// evaluation.BigSegmentProvider by fronting a Store with a cache and reporting the store's
// observed health via a background poller.
type Wrapper struct {
	store       Store
	config      Config
	cache       *expiringLRUCache
	group       singleflight.Group
	status      ldreason.BigSegmentsStatus
	statusM     sync.RWMutex
	broadcaster *broadcast.Broadcaster[ldreason.BigSegmentsStatus]
	halt        chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
}

// NewWrapper creates a Wrapper around store and starts its background status poller. Close
// stops the poller and releases the store.
func NewWrapper(store Store, config Config) *Wrapper {
	config = config.withDefaults()
	w := &Wrapper{
		store:       store,
		config:      config,
		cache:       newExpiringLRUCache(config.UserCacheSize, config.UserCacheTime),
		status:      ldreason.BigSegmentsHealthy,
		broadcaster: broadcast.NewBroadcaster[ldreason.BigSegmentsStatus](),
		halt:        make(chan struct{}),
		now:         time.Now,
	}
	go w.pollStatus()
	return w
}

// GetUserMembership satisfies evaluation.BigSegmentProvider. It is the sole entry point the
// evaluator uses to consult big segments.
func (w *Wrapper) GetUserMembership(userKey string) (evaluation.BigSegmentMembership, ldreason.BigSegmentsStatus) {
	status := w.currentStatus()
	userHash := hashForUserKey(userKey)

	if cached, ok := w.cache.get(userHash); ok {
		return newMembership(cached), status
	}

	result, err, _ := w.group.Do(userHash, func() (interface{}, error) {
		m, err := w.store.GetUserMembership(userHash)
		if err != nil {
			return StoreMembership{}, err
		}
		w.cache.add(userHash, m)
		return m, nil
	})
	if err != nil {
		w.config.Loggers.Warnf("Big segment store membership query failed: %s", err)
		return newMembership(StoreMembership{}), ldreason.BigSegmentsStoreError
	}
	return newMembership(result.(StoreMembership)), status
}

// Status returns the wrapper's current view of the store's health.
func (w *Wrapper) Status() ldreason.BigSegmentsStatus {
	return w.currentStatus()
}

// SubscribeStatus returns a channel that receives every subsequent status transition.
func (w *Wrapper) SubscribeStatus() chan ldreason.BigSegmentsStatus {
	return w.broadcaster.Subscribe()
}

// UnsubscribeStatus releases a channel returned by SubscribeStatus.
func (w *Wrapper) UnsubscribeStatus(ch chan ldreason.BigSegmentsStatus) {
	w.broadcaster.Unsubscribe(ch)
}

// Close stops the status poller and closes the underlying store.
func (w *Wrapper) Close() error {
	w.closeOnce.Do(func() {
		close(w.halt)
		w.broadcaster.Close()
	})
	return w.store.Close()
}

func (w *Wrapper) currentStatus() ldreason.BigSegmentsStatus {
	w.statusM.RLock()
	defer w.statusM.RUnlock()
	return w.status
}

func (w *Wrapper) pollStatus() {
	w.checkStatus()
	ticker := time.NewTicker(w.config.StatusPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.halt:
			return
		case <-ticker.C:
			w.checkStatus()
		}
	}
}

func (w *Wrapper) checkStatus() {
	newStatus := w.computeStatus()
	w.statusM.Lock()
	changed := newStatus != w.status
	w.status = newStatus
	w.statusM.Unlock()
	if changed {
		w.broadcaster.Publish(newStatus)
	}
}

func (w *Wrapper) computeStatus() ldreason.BigSegmentsStatus {
	metadata, err := w.store.GetMetadata()
	if err != nil {
		return ldreason.BigSegmentsStoreError
	}
	if !metadata.IsDefined() {
		return ldreason.BigSegmentsStale
	}
	age := ldtime.UnixMillisFromTime(w.now()) - metadata.LastUpToDate
	if int64(age) > w.config.StaleAfter.Milliseconds() {
		return ldreason.BigSegmentsStale
	}
	return ldreason.BigSegmentsHealthy
}

func hashForUserKey(key string) string {
	hashBytes := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(hashBytes[:])
}
