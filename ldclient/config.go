// Package ldclient is the top-level facade: it wires the data store, update processor, event
// processor, evaluator, and (optionally) the big-segment wrapper together, and applies the
// offline, not-initialized, and wrong-type fallback rules a caller expects from a single
// evaluation entry point.
//
// Grounded on the "Client Facade" row of the core spec's component table and on the vendored
// SDK's clientContextImpl (construction-time wiring of SDK key, offline flag, HTTP and logging
// configuration) and flagTrackerImpl (the OnFlagChange subscription pattern, reused here for
// flag-value change notifications).
package ldclient

import (
	"net/http"
	"time"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-server-sdk-core/bigsegments"
	"github.com/launchdarkly/go-server-sdk-core/datastore"
	internalldlog "github.com/launchdarkly/go-server-sdk-core/internal/ldlog"
	"github.com/launchdarkly/go-server-sdk-core/ldevents"
)

// Defaults for fields callers commonly leave unset.
const (
	DefaultStartWaitTime = 5 * time.Second
	DefaultStreamURI     = "https://stream.launchdarkly.com"
	DefaultPollURI       = "https://sdk.launchdarkly.com"
	DefaultEventsURI     = "https://events.launchdarkly.com"
	DefaultPollInterval  = 30 * time.Second
)

// UpdateProcessor is the common surface of StreamingProcessor and PollingProcessor that the
// facade depends on. A client uses exactly one implementation at a time.
type UpdateProcessor interface {
	Start(closeWhenReady chan<- struct{})
	IsInitialized() bool
	Close() error
}

// Config controls how a Client is constructed. SDKKey and DataStore are the only required
// fields when Offline is false; a nil UpdateProcessor is valid (the client then relies entirely
// on whatever is already in the store, e.g. for tests).
type Config struct {
	SDKKey  string
	Offline bool

	DataStore       datastore.Store
	UpdateProcessor UpdateProcessor
	EventProcessor  ldevents.EventProcessor
	BigSegments     *bigsegments.Wrapper

	// StartWaitTime bounds how long New blocks waiting for the first successful store Init.
	// Undefined means DefaultStartWaitTime.
	StartWaitTime ct.OptDuration

	HTTPClient *http.Client
	Headers    http.Header

	Loggers ldlog.Loggers
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.EventProcessor == nil {
		c.EventProcessor = ldevents.NewNullEventProcessor()
	}
	if c.Loggers == (ldlog.Loggers{}) {
		c.Loggers = internalldlog.New(ldlog.Info)
	}
	return c
}
