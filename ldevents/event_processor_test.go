package ldevents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
)

func silentLoggers() ldlog.Loggers {
	var l ldlog.Loggers
	l.SetMinLevel(ldlog.None)
	return l
}

type capturingSender struct {
	analytics [][]byte
	results   chan struct{}
}

func newCapturingSender() *capturingSender {
	return &capturingSender{results: make(chan struct{}, 10)}
}

func (s *capturingSender) SendEventData(kind EventDataKind, data []byte, count int) EventSenderResult {
	if kind == AnalyticsEventDataKind {
		s.analytics = append(s.analytics, data)
	}
	s.results <- struct{}{}
	return EventSenderResult{Success: true}
}

func mustOptIntGreaterThanZero(n int) ct.OptIntGreaterThanZero {
	o, err := ct.NewOptIntGreaterThanZero(n)
	if err != nil {
		panic(err)
	}
	return o
}

func testConfig(sender EventSender) EventsConfiguration {
	return EventsConfiguration{
		Capacity:              mustOptIntGreaterThanZero(1000),
		FlushInterval:         ct.NewOptDuration(time.Hour), // never fires on its own; tests call Flush explicitly
		UserKeysCapacity:      mustOptIntGreaterThanZero(DefaultUserKeysCapacity),
		UserKeysFlushInterval: ct.NewOptDuration(time.Hour),
		EventSender:           sender,
		Loggers:               silentLoggers(),
	}
}

func waitForFlush(t *testing.T, sender *capturingSender) {
	t.Helper()
	select {
	case <-sender.results:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestFeatureEventProducesIndexAndFeatureEvents(t *testing.T) {
	sender := newCapturingSender()
	ep := NewDefaultEventProcessor(testConfig(sender))
	defer ep.Close()

	user := ldmodel.User{Key: "user1"}
	evt := NewFeatureRequestEvent(nil, "flagKey", user, ldvalue.NewOptionalInt(1),
		ldvalue.String("value2"), ldvalue.String("default"),
		ldreason.NewEvalReasonFallthrough(false), false, "", ldtime.UnixMillisNow())
	evt.TrackEvents = true

	ep.SendEvent(evt)
	ep.Flush()
	waitForFlush(t, sender)

	require.Len(t, sender.analytics, 1)
	var parsed []map[string]interface{}
	require.NoError(t, json.Unmarshal(sender.analytics[0], &parsed))
	require.Len(t, parsed, 3)
	assert.Equal(t, "index", parsed[0]["kind"])
	assert.Equal(t, "feature", parsed[1]["kind"])
	assert.Equal(t, "flagKey", parsed[1]["key"])
	assert.EqualValues(t, 1, parsed[1]["variation"])
	assert.Equal(t, "summary", parsed[2]["kind"])
}

func TestUntrackedFeatureEventOnlyContributesToSummary(t *testing.T) {
	sender := newCapturingSender()
	ep := NewDefaultEventProcessor(testConfig(sender))
	defer ep.Close()

	user := ldmodel.User{Key: "user1"}
	evt := NewFeatureRequestEvent(nil, "flagKey", user, ldvalue.NewOptionalInt(0),
		ldvalue.Bool(true), ldvalue.Bool(false), ldreason.NewEvalReasonFallthrough(false), false, "", ldtime.UnixMillisNow())

	ep.SendEvent(evt)
	ep.Flush()
	waitForFlush(t, sender)

	require.Len(t, sender.analytics, 1)
	var parsed []map[string]interface{}
	require.NoError(t, json.Unmarshal(sender.analytics[0], &parsed))
	// no full feature event, only an index event (for the never-before-seen user) and a summary
	kinds := []interface{}{}
	for _, e := range parsed {
		kinds = append(kinds, e["kind"])
	}
	assert.Contains(t, kinds, "index")
	assert.Contains(t, kinds, "summary")
	assert.NotContains(t, kinds, "feature")
}

func TestSecondEventForSameUserProducesNoSecondIndexEvent(t *testing.T) {
	sender := newCapturingSender()
	ep := NewDefaultEventProcessor(testConfig(sender))
	defer ep.Close()

	user := ldmodel.User{Key: "user1"}
	evt := NewFeatureRequestEvent(nil, "flagKey", user, ldvalue.NewOptionalInt(0),
		ldvalue.Bool(true), ldvalue.Bool(false), ldreason.NewEvalReasonFallthrough(false), false, "", ldtime.UnixMillisNow())
	evt.TrackEvents = true

	ep.SendEvent(evt)
	ep.SendEvent(evt)
	ep.Flush()
	waitForFlush(t, sender)

	var parsed []map[string]interface{}
	require.NoError(t, json.Unmarshal(sender.analytics[0], &parsed))
	indexCount := 0
	for _, e := range parsed {
		if e["kind"] == "index" {
			indexCount++
		}
	}
	assert.Equal(t, 1, indexCount)
}
