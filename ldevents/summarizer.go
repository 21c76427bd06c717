package ldevents

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// eventSummarizer accumulates per-(key,variation,version) evaluation counters between flushes.
// Its methods are deliberately not thread-safe: only the dispatcher goroutine calls them.
type eventSummarizer struct {
	eventsState eventSummary
}

type eventSummary struct {
	counters  map[counterKey]*counterValue
	startDate ldtime.UnixMillisecondTime
	endDate   ldtime.UnixMillisecondTime
}

type counterKey struct {
	key       string
	variation int
	hasVariation bool
	version   int
}

type counterValue struct {
	count       int
	flagValue   ldvalue.Value
	flagDefault ldvalue.Value
}

func newEventSummarizer() eventSummarizer {
	return eventSummarizer{eventsState: newEventSummary()}
}

func newEventSummary() eventSummary {
	return eventSummary{counters: make(map[counterKey]*counterValue)}
}

func (s *eventSummarizer) summarizeEvent(evt Event) {
	fe, ok := evt.(FeatureRequestEvent)
	if !ok {
		return
	}

	key := counterKey{
		key:          fe.Key,
		variation:    fe.Variation.IntValue(),
		hasVariation: fe.Variation.IsDefined(),
		version:      fe.Version,
	}

	if value, ok := s.eventsState.counters[key]; ok {
		value.count++
	} else {
		s.eventsState.counters[key] = &counterValue{
			count:       1,
			flagValue:   fe.Value,
			flagDefault: fe.Default,
		}
	}

	creationDate := fe.CreationDate
	if s.eventsState.startDate == 0 || creationDate < s.eventsState.startDate {
		s.eventsState.startDate = creationDate
	}
	if creationDate > s.eventsState.endDate {
		s.eventsState.endDate = creationDate
	}
}

func (s *eventSummarizer) snapshot() eventSummary {
	return s.eventsState
}

func (s *eventSummarizer) reset() {
	s.eventsState = newEventSummary()
}
