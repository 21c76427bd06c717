package datasource

import (
	"net/http"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"
	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
	"github.com/launchdarkly/go-server-sdk-core/internal/broadcast"
)

const (
	streamReadTimeout        = 5 * time.Minute
	streamMaxRetryDelay      = 30 * time.Second
	streamRetryResetInterval = 60 * time.Second
	streamFullJitterRatio    = 1.0
	defaultInitialRetryDelay = 1 * time.Second
	defaultStreamURI         = "https://stream.launchdarkly.com"
)

// StreamingProcessor maintains a long-lived SSE connection to the control plane and applies
// put/patch/delete events to a Store as they arrive.
//
// Grounded on streaming_data_source.go: exponential backoff with full jitter (base
// defaultInitialRetryDelay, capped at streamMaxRetryDelay, reset after
// streamRetryResetInterval of a healthy connection), a malformed event drops the connection
// into backoff without discarding the store's current contents, and unknown event types are
// logged and ignored.
type StreamingProcessor struct {
	store                 datastore.Store
	streamURI             string
	httpClient            *http.Client
	headers               http.Header
	loggers               ldlog.Loggers
	initialReconnectDelay time.Duration
	statusBroadcaster     *broadcast.Broadcaster[StatusInfo]

	halt          chan struct{}
	closeOnce     sync.Once
	readyOnce     sync.Once
	setInitOnce   sync.Once
	isInitialized bool
}

// NewStreamingProcessor constructs a StreamingProcessor. streamURI is the base streaming URI;
// "/all" is appended, matching the wire contract in the core spec's external interfaces
// section. An undefined streamURI falls back to defaultStreamURI, and an undefined
// initialReconnectDelay to defaultInitialRetryDelay.
func NewStreamingProcessor(
	store datastore.Store,
	httpClient *http.Client,
	headers http.Header,
	streamURI ct.OptURLAbsolute,
	initialReconnectDelay ct.OptDuration,
	loggers ldlog.Loggers,
) *StreamingProcessor {
	uri := streamURI.String()
	if uri == "" {
		uri = defaultStreamURI
	}
	client := httpClient
	if client == nil {
		client = &http.Client{}
	}
	client.Timeout = 0 // the connection must stay open indefinitely; use a dial timeout instead
	return &StreamingProcessor{
		store:                 store,
		streamURI:             uri,
		httpClient:            client,
		headers:               headers,
		loggers:               loggers,
		initialReconnectDelay: initialReconnectDelay.GetOrElse(defaultInitialRetryDelay),
		statusBroadcaster:     broadcast.NewBroadcaster[StatusInfo](),
		halt:                  make(chan struct{}),
	}
}

// Statuses returns a channel of data-source status transitions.
func (p *StreamingProcessor) Statuses() chan StatusInfo { return p.statusBroadcaster.Subscribe() }

// IsInitialized reports whether a "put" event has ever been successfully stored.
func (p *StreamingProcessor) IsInitialized() bool { return p.isInitialized }

// Start begins the streaming connection in the background. closeWhenReady is closed once
// either the first "put" succeeds or the connection permanently fails.
func (p *StreamingProcessor) Start(closeWhenReady chan<- struct{}) {
	p.loggers.Info("Starting streaming connection")
	go p.subscribe(closeWhenReady)
}

func (p *StreamingProcessor) subscribe(closeWhenReady chan<- struct{}) {
	req, err := http.NewRequest(http.MethodGet, p.streamURI+"/all", nil)
	if err != nil {
		p.loggers.Errorf("Unable to create stream request: %s", err)
		close(closeWhenReady)
		return
	}
	for k, vv := range p.headers {
		req.Header[k] = vv
	}

	errorHandler := func(err error) es.StreamErrorHandlerResult {
		if se, ok := err.(es.SubscriptionError); ok {
			if se.Code == 401 || se.Code == 403 {
				p.loggers.Errorf("Stream returned HTTP %d, giving up", se.Code)
				p.publishStatus(StateOff, ErrorKindErrorResponse, se.Code, "")
				return es.StreamErrorHandlerResult{CloseNow: true}
			}
			p.loggers.Warnf("Stream returned HTTP %d, will retry", se.Code)
			p.publishStatus(StateInterrupted, ErrorKindErrorResponse, se.Code, "")
			return es.StreamErrorHandlerResult{CloseNow: false}
		}
		p.loggers.Warnf("Stream connection error: %s, will retry", err)
		p.publishStatus(StateInterrupted, ErrorKindNetwork, 0, err.Error())
		return es.StreamErrorHandlerResult{CloseNow: false}
	}

	stream, err := es.SubscribeWithRequestAndOptions(req,
		es.StreamOptionHTTPClient(p.httpClient),
		es.StreamOptionReadTimeout(streamReadTimeout),
		es.StreamOptionInitialRetry(p.initialReconnectDelay),
		es.StreamOptionUseBackoff(streamMaxRetryDelay),
		es.StreamOptionUseJitter(streamFullJitterRatio),
		es.StreamOptionRetryResetInterval(streamRetryResetInterval),
		es.StreamOptionErrorHandler(errorHandler),
		es.StreamOptionCanRetryFirstConnection(-1),
		es.StreamOptionLogger(p.loggers.ForLevel(ldlog.Info)),
	)
	if err != nil {
		p.loggers.Errorf("Unable to start stream: %s", err)
		close(closeWhenReady)
		return
	}

	p.consumeStream(stream, closeWhenReady)
}

func (p *StreamingProcessor) consumeStream(stream *es.Stream, closeWhenReady chan<- struct{}) {
	defer func() {
		for range stream.Events { //nolint:revive // drain so the producer can garbage collect
		}
	}()

	for {
		select {
		case event, ok := <-stream.Events:
			if !ok {
				p.loggers.Info("Event stream closed")
				return
			}
			p.handleEvent(event, stream, closeWhenReady)

		case <-p.halt:
			stream.Close()
			return
		}
	}
}

func (p *StreamingProcessor) handleEvent(event es.Event, stream *es.Stream, closeWhenReady chan<- struct{}) {
	switch event.Event() {
	case "put":
		collections, err := parsePut([]byte(event.Data()))
		if err != nil {
			p.malformedEvent(event, err, stream)
			return
		}
		if err := p.store.Init(collections); err != nil {
			p.loggers.Errorf("Failed to store streaming update: %s", err)
			return
		}
		p.setInitializedAndNotifyClient(closeWhenReady)
		p.publishStatus(StateValid, "", 0, "")

	case "patch":
		kind, key, item, err := parsePatch([]byte(event.Data()))
		if err != nil {
			p.malformedEvent(event, err, stream)
			return
		}
		if _, err := p.store.Upsert(kind, key, item); err != nil {
			p.loggers.Errorf("Failed to apply streaming patch for %s: %s", key, err)
			return
		}
		p.publishStatus(StateValid, "", 0, "")

	case "delete":
		kind, key, item, err := parseDelete([]byte(event.Data()))
		if err != nil {
			p.malformedEvent(event, err, stream)
			return
		}
		if _, err := p.store.Upsert(kind, key, item); err != nil {
			p.loggers.Errorf("Failed to apply streaming delete for %s: %s", key, err)
			return
		}
		p.publishStatus(StateValid, "", 0, "")

	default:
		p.loggers.Infof("Unexpected event in stream: %s", event.Event())
	}
}

func (p *StreamingProcessor) malformedEvent(event es.Event, err error, stream *es.Stream) {
	p.loggers.Errorf("Received streaming %q event with malformed data (%s); will restart stream", event.Event(), err)
	p.publishStatus(StateInterrupted, ErrorKindInvalidData, 0, err.Error())
	stream.Restart()
}

func (p *StreamingProcessor) setInitializedAndNotifyClient(closeWhenReady chan<- struct{}) {
	p.setInitOnce.Do(func() {
		p.isInitialized = true
	})
	p.readyOnce.Do(func() {
		if closeWhenReady != nil {
			close(closeWhenReady)
		}
	})
}

func (p *StreamingProcessor) publishStatus(state State, errorKind ErrorKind, statusCode int, message string) {
	p.statusBroadcaster.Publish(StatusInfo{
		State:      state,
		Since:      time.Now(),
		ErrorKind:  errorKind,
		StatusCode: statusCode,
		Message:    message,
	})
}

// Close stops the streaming connection.
func (p *StreamingProcessor) Close() error {
	p.closeOnce.Do(func() {
		close(p.halt)
		p.publishStatus(StateOff, "", 0, "")
		p.statusBroadcaster.Close()
	})
	return nil
}
