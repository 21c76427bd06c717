package datasource

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
	"github.com/launchdarkly/go-server-sdk-core/internal/broadcast"
)

const (
	defaultPollURI      = "https://sdk.launchdarkly.com"
	defaultPollInterval = 30 * time.Second
)

// PollingProcessor periodically fetches a full snapshot of flags and segments and applies it to
// a Store.
//
// A 401 or 403 response is treated as unrecoverable: the poller stops permanently and never
// reports initialized. Any other HTTP-level or network error is logged and retried on the next
// tick without affecting the current store contents.
type PollingProcessor struct {
	store             datastore.Store
	pollURI           string
	httpClient        *http.Client
	headers           http.Header
	pollInterval      time.Duration
	loggers           ldlog.Loggers
	statusBroadcaster *broadcast.Broadcaster[StatusInfo]

	halt          chan struct{}
	closeOnce     sync.Once
	readyOnce     sync.Once
	isInitialized bool
	initMu        sync.RWMutex
}

// NewPollingProcessor constructs a PollingProcessor. pollURI is the base polling URI; "/all" is
// appended. An undefined pollURI falls back to defaultPollURI, and an undefined pollInterval to
// defaultPollInterval.
func NewPollingProcessor(
	store datastore.Store,
	httpClient *http.Client,
	headers http.Header,
	pollURI ct.OptURLAbsolute,
	pollInterval ct.OptDuration,
	loggers ldlog.Loggers,
) *PollingProcessor {
	client := httpClient
	if client == nil {
		client = &http.Client{}
	}
	uri := pollURI.String()
	if uri == "" {
		uri = defaultPollURI
	}
	return &PollingProcessor{
		store:             store,
		pollURI:           uri,
		httpClient:        client,
		headers:           headers,
		pollInterval:      pollInterval.GetOrElse(defaultPollInterval),
		loggers:           loggers,
		statusBroadcaster: broadcast.NewBroadcaster[StatusInfo](),
		halt:              make(chan struct{}),
	}
}

// Statuses returns a channel of data-source status transitions.
func (p *PollingProcessor) Statuses() chan StatusInfo { return p.statusBroadcaster.Subscribe() }

// IsInitialized reports whether a poll has ever succeeded.
func (p *PollingProcessor) IsInitialized() bool {
	p.initMu.RLock()
	defer p.initMu.RUnlock()
	return p.isInitialized
}

// Start begins polling in the background. closeWhenReady is closed once either the first poll
// succeeds or polling permanently fails.
func (p *PollingProcessor) Start(closeWhenReady chan<- struct{}) {
	p.loggers.Info("Starting polling connection")
	go p.run(closeWhenReady)
}

func (p *PollingProcessor) run(closeWhenReady chan<- struct{}) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	if p.pollOnce(closeWhenReady) == pollResultFatal {
		return
	}

	for {
		select {
		case <-ticker.C:
			if p.pollOnce(closeWhenReady) == pollResultFatal {
				return
			}
		case <-p.halt:
			return
		}
	}
}

type pollResult int

const (
	pollResultOK pollResult = iota
	pollResultRetryable
	pollResultFatal
)

func (p *PollingProcessor) pollOnce(closeWhenReady chan<- struct{}) pollResult {
	ctx, cancel := context.WithTimeout(context.Background(), p.pollInterval)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pollURI+"/all", nil)
	if err != nil {
		p.loggers.Errorf("Unable to create poll request: %s", err)
		return pollResultRetryable
	}
	for k, vv := range p.headers {
		req.Header[k] = vv
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.loggers.Warnf("Polling request failed: %s", err)
		p.publishStatus(StateInterrupted, ErrorKindNetwork, 0, err.Error())
		return pollResultRetryable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		p.loggers.Errorf("Polling request returned HTTP %d, giving up", resp.StatusCode)
		p.publishStatus(StateOff, ErrorKindErrorResponse, resp.StatusCode, "")
		p.readyOnce.Do(func() { close(closeWhenReady) })
		return pollResultFatal
	}
	if resp.StatusCode != http.StatusOK {
		p.loggers.Warnf("Polling request returned unexpected HTTP %d", resp.StatusCode)
		p.publishStatus(StateInterrupted, ErrorKindErrorResponse, resp.StatusCode, "")
		return pollResultRetryable
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.loggers.Warnf("Failed to read polling response: %s", err)
		p.publishStatus(StateInterrupted, ErrorKindNetwork, 0, err.Error())
		return pollResultRetryable
	}

	collections, err := parsePut(body)
	if err != nil {
		p.loggers.Warnf("Received malformed polling response: %s", err)
		p.publishStatus(StateInterrupted, ErrorKindInvalidData, 0, err.Error())
		return pollResultRetryable
	}

	if err := p.store.Init(collections); err != nil {
		p.loggers.Errorf("Failed to store polling update: %s", err)
		return pollResultRetryable
	}

	p.initMu.Lock()
	p.isInitialized = true
	p.initMu.Unlock()
	p.readyOnce.Do(func() { close(closeWhenReady) })
	p.publishStatus(StateValid, "", 0, "")
	return pollResultOK
}

func (p *PollingProcessor) publishStatus(state State, errorKind ErrorKind, statusCode int, message string) {
	p.statusBroadcaster.Publish(StatusInfo{
		State:      state,
		Since:      time.Now(),
		ErrorKind:  errorKind,
		StatusCode: statusCode,
		Message:    message,
	})
}

// Close stops polling.
func (p *PollingProcessor) Close() error {
	p.closeOnce.Do(func() {
		close(p.halt)
		p.publishStatus(StateOff, "", 0, "")
		p.statusBroadcaster.Close()
	})
	return nil
}
