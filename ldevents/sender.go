package ldevents

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// EventSender delivers already-formatted analytics event data to the events service.
type EventSender interface {
	SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult
}

// EventDataKind distinguishes an analytics payload from a diagnostic one.
type EventDataKind string

// The two event payload kinds.
const (
	AnalyticsEventDataKind  EventDataKind = "analytics"
	DiagnosticEventDataKind EventDataKind = "diagnostic"
)

// EventSenderResult is the outcome of a single SendEventData call.
type EventSenderResult struct {
	Success        bool
	MustShutDown   bool
	TimeFromServer ldtime.UnixMillisecondTime
}

const (
	defaultEventsURI  = "https://events.launchdarkly.com"
	eventSchemaHeader = "X-LaunchDarkly-Event-Schema"
	payloadIDHeader   = "X-LaunchDarkly-Payload-ID"
	currentEventSchema = "3"
)

type defaultEventSender struct {
	httpClient    *http.Client
	eventsURI     string
	diagnosticURI string
	headers       http.Header
	loggers       ldlog.Loggers
	retryDelay    time.Duration
}

// NewServerSideEventSender creates the standard EventSender used by the client facade: it posts
// to eventsURI+"/bulk" and eventsURI+"/diagnostic" with an Authorization header carrying sdkKey.
func NewServerSideEventSender(
	httpClient *http.Client,
	sdkKey string,
	eventsURI string,
	headers http.Header,
	loggers ldlog.Loggers,
) EventSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	allHeaders := make(http.Header)
	for k, vv := range headers {
		allHeaders[k] = vv
	}
	allHeaders.Set("Authorization", sdkKey)
	if eventsURI == "" {
		eventsURI = defaultEventsURI
	}
	return &defaultEventSender{
		httpClient:    httpClient,
		eventsURI:     strings.TrimRight(eventsURI, "/") + "/bulk",
		diagnosticURI: strings.TrimRight(eventsURI, "/") + "/diagnostic",
		headers:       allHeaders,
		loggers:       loggers,
	}
}

func (s *defaultEventSender) SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult {
	headers := make(http.Header)
	for k, vv := range s.headers {
		headers[k] = vv
	}
	headers.Set("Content-Type", "application/json")

	var uri, description string
	switch kind {
	case AnalyticsEventDataKind:
		uri = s.eventsURI
		description = fmt.Sprintf("%d events", eventCount)
		headers.Add(eventSchemaHeader, currentEventSchema)
		if payloadUUID, err := uuid.NewRandom(); err == nil {
			headers.Add(payloadIDHeader, payloadUUID.String())
		}
	case DiagnosticEventDataKind:
		uri = s.diagnosticURI
		description = "diagnostic event"
	default:
		return EventSenderResult{}
	}

	s.loggers.Debugf("Sending %s: %s", description, data)

	var resp *http.Response
	var respErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay
			if delay == 0 {
				delay = time.Second
			}
			s.loggers.Warnf("Will retry posting events after %s", delay)
			time.Sleep(delay)
		}
		req, reqErr := http.NewRequest(http.MethodPost, uri, bytes.NewReader(data))
		if reqErr != nil {
			s.loggers.Errorf("Unexpected error while creating event request: %s", reqErr)
			return EventSenderResult{}
		}
		req.Header = headers

		resp, respErr = s.httpClient.Do(req)
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		if respErr != nil {
			s.loggers.Warnf("Unexpected error while sending events: %s", respErr)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result := EventSenderResult{Success: true}
			if t, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
				result.TimeFromServer = ldtime.UnixMillisFromTime(t)
			}
			return result
		}
		if isHTTPErrorRecoverable(resp.StatusCode) {
			if attempt == 0 {
				s.loggers.Warnf("Received HTTP %d when sending events, will retry", resp.StatusCode)
			} else {
				s.loggers.Warnf("Received HTTP %d when sending events, some events were dropped", resp.StatusCode)
			}
			continue
		}
		s.loggers.Errorf("Received HTTP %d when sending events, giving up", resp.StatusCode)
		return EventSenderResult{MustShutDown: true}
	}
	return EventSenderResult{}
}

// isHTTPErrorRecoverable reports whether the given status code represents a transient failure
// worth retrying, as opposed to an unrecoverable condition (bad SDK key) that should disable
// further sends.
func isHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		return statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests
	}
	return true
}
