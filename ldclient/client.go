package ldclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
	"github.com/launchdarkly/go-server-sdk-core/evaluation"
	"github.com/launchdarkly/go-server-sdk-core/internal/broadcast"
	"github.com/launchdarkly/go-server-sdk-core/ldevents"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
)

// FlagChangeEvent is published for each NotifyFlagChanged call, matching the
// broadcaster/subscriber pattern the vendored SDK's FlagTracker uses.
type FlagChangeEvent struct {
	Key string
}

// Client is the facade applications use to evaluate flags and record analytics events. It is
// safe for concurrent use.
type Client struct {
	config          Config
	store           datastore.Store
	evaluator       *evaluation.Evaluator
	events          ldevents.EventProcessor
	updateProcessor UpdateProcessor

	flagChangeBroadcaster *broadcast.Broadcaster[FlagChangeEvent]

	initMu      sync.RWMutex
	initialized bool
}

// New constructs a Client and, unless offline or no UpdateProcessor was supplied, starts it and
// blocks for up to config.StartWaitTime waiting for the first successful store Init. Timing out
// is not an error: the client still starts, and evaluation proceeds using whatever the store
// already holds (possibly nothing), returning ErrorKind CLIENT_NOT_READY details until data
// arrives.
func New(config Config) (*Client, error) {
	config = config.withDefaults()

	c := &Client{
		config:                config,
		store:                 config.DataStore,
		events:                config.EventProcessor,
		updateProcessor:       config.UpdateProcessor,
		flagChangeBroadcaster: broadcast.NewBroadcaster[FlagChangeEvent](),
	}
	c.evaluator = evaluation.NewEvaluator(dataProviderFor(c.store), bigSegmentProviderFor(config))

	if config.Offline {
		c.setInitialized(true)
		return c, nil
	}

	if c.updateProcessor == nil {
		return c, nil
	}

	closeWhenReady := make(chan struct{})
	c.updateProcessor.Start(closeWhenReady)

	select {
	case <-closeWhenReady:
		c.setInitialized(c.updateProcessor.IsInitialized())
	case <-time.After(config.StartWaitTime.GetOrElse(DefaultStartWaitTime)):
	}
	return c, nil
}

func (c *Client) setInitialized(v bool) {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	c.initialized = v
}

// Initialized reports whether the client is ready to serve flags backed by real data: true if
// offline, or if the update processor has ever completed a store Init. It never blocks.
func (c *Client) Initialized() bool {
	c.initMu.RLock()
	defer c.initMu.RUnlock()
	if c.initialized {
		return true
	}
	if c.updateProcessor != nil && c.updateProcessor.IsInitialized() {
		return true
	}
	return false
}

// Close shuts down the update processor and event processor, flushing any buffered events
// first.
func (c *Client) Close() error {
	c.events.Flush()
	_ = c.events.Close()
	if c.updateProcessor != nil {
		return c.updateProcessor.Close()
	}
	return nil
}

// Flush triggers an immediate asynchronous flush of buffered analytics events.
func (c *Client) Flush() {
	c.events.Flush()
}

// Identify records that user was seen, without evaluating any flag.
func (c *Client) Identify(user ldmodel.User) {
	if user.Key == "" {
		return
	}
	c.events.SendEvent(ldevents.IdentifyEvent{
		BaseEvent: ldevents.BaseEvent{User: user, CreationDate: ldtime.UnixMillisNow()},
	})
}

// TrackEvent records a custom event with no metric value.
func (c *Client) TrackEvent(eventName string, user ldmodel.User, data ldvalue.Value) {
	c.trackCustom(eventName, user, data, false, 0)
}

// TrackMetric records a custom event carrying a numeric metric value, e.g. for experimentation.
func (c *Client) TrackMetric(eventName string, user ldmodel.User, data ldvalue.Value, metricValue float64) {
	c.trackCustom(eventName, user, data, true, metricValue)
}

func (c *Client) trackCustom(eventName string, user ldmodel.User, data ldvalue.Value, hasMetric bool, metricValue float64) {
	if user.Key == "" {
		return
	}
	c.events.SendEvent(ldevents.CustomEvent{
		BaseEvent:   ldevents.BaseEvent{User: user, CreationDate: ldtime.UnixMillisNow()},
		Key:         eventName,
		Data:        data,
		HasMetric:   hasMetric,
		MetricValue: metricValue,
	})
}

// SecureModeHash returns the HMAC-SHA256 hex digest of user.Key keyed by the SDK key, for use
// with client-side secure mode.
func (c *Client) SecureModeHash(user ldmodel.User) string {
	mac := hmac.New(sha256.New, []byte(c.config.SDKKey))
	_, _ = mac.Write([]byte(user.Key))
	return hex.EncodeToString(mac.Sum(nil))
}

// AddFlagChangeListener returns a channel that receives an event for every flag key whose
// stored version changes. This client core does not itself watch the store for external
// mutation; callers that upsert directly (e.g. a synchronizer running in the same process)
// should call NotifyFlagChanged after each successful write.
func (c *Client) AddFlagChangeListener() chan FlagChangeEvent {
	return c.flagChangeBroadcaster.Subscribe()
}

// RemoveFlagChangeListener releases a channel returned by AddFlagChangeListener.
func (c *Client) RemoveFlagChangeListener(ch chan FlagChangeEvent) {
	c.flagChangeBroadcaster.Unsubscribe(ch)
}

// NotifyFlagChanged publishes a FlagChangeEvent to any subscribers. The update processors in
// this module do not call it; code that writes to the store calls it after each change.
func (c *Client) NotifyFlagChanged(key string) {
	c.flagChangeBroadcaster.Publish(FlagChangeEvent{Key: key})
}

// dataProviderFor and bigSegmentProviderFor adapt this package's Config into the evaluator's
// narrower ports, so evaluation never depends on the datastore or bigsegments packages
// directly.
func dataProviderFor(store datastore.Store) evaluation.DataProvider {
	return storeDataProvider{store: store}
}

type storeDataProvider struct {
	store datastore.Store
}

func (p storeDataProvider) GetFeatureFlag(key string) *ldmodel.FeatureFlag {
	if p.store == nil {
		return nil
	}
	item, err := p.store.Get(datastore.Features, key)
	if err != nil {
		return nil
	}
	return datastore.ToFlag(item)
}

func (p storeDataProvider) GetSegment(key string) *ldmodel.Segment {
	if p.store == nil {
		return nil
	}
	item, err := p.store.Get(datastore.Segments, key)
	if err != nil {
		return nil
	}
	return datastore.ToSegment(item)
}

func bigSegmentProviderFor(config Config) evaluation.BigSegmentProvider {
	if config.BigSegments == nil {
		return nil
	}
	return config.BigSegments
}
