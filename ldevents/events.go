// Package ldevents implements the analytics event pipeline: a bounded ingress queue, a single
// dispatcher goroutine that summarizes and deduplicates, and a pool of flush workers that ship
// completed payloads to an EventSender.
package ldevents

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
)

// Event is implemented by every event kind the pipeline accepts.
type Event interface {
	GetBase() BaseEvent
}

// BaseEvent holds the fields common to every event kind.
type BaseEvent struct {
	CreationDate ldtime.UnixMillisecondTime
	User         ldmodel.User
}

// GetBase returns the event's own BaseEvent.
func (b BaseEvent) GetBase() BaseEvent { return b }

// FeatureRequestEvent records a single flag evaluation.
type FeatureRequestEvent struct {
	BaseEvent
	Key                  string
	Version              int
	Variation            ldvalue.OptionalInt
	Value                ldvalue.Value
	Default              ldvalue.Value
	PrereqOf             string
	HasPrereqOf          bool
	Reason               ldreason.EvaluationReason
	HasReason            bool
	TrackEvents          bool
	Debug                bool
	DebugEventsUntilDate ldtime.UnixMillisecondTime
}

// IdentifyEvent records that a user was seen, always carrying the full user object.
type IdentifyEvent struct {
	BaseEvent
}

// CustomEvent records an application-defined event, optionally carrying a numeric metric value.
type CustomEvent struct {
	BaseEvent
	Key        string
	Data       ldvalue.Value
	HasMetric  bool
	MetricValue float64
}

// IndexEvent introduces a user the pipeline has not seen recently, so that later events which
// omit the full user object can still be attributed to it.
type IndexEvent struct {
	BaseEvent
}

// FlagEventProperties is the information the event pipeline needs about a flag, without
// depending on the full ldmodel.FeatureFlag type. ldmodel.FeatureFlag implements this interface.
type FlagEventProperties interface {
	GetKey() string
	GetVersion() int
	IsFullEventTrackingEnabled() bool
	GetDebugEventsUntilDate() ldtime.UnixMillisecondTime
	IsExperimentationEnabled(reason ldreason.EvaluationReason) bool
}

// NewFeatureRequestEvent builds a FeatureRequestEvent from a flag evaluation result, following
// the field-population contract in event_processor.go/event_summarizer.go: a flag lookup miss
// still produces an event carrying key and default but no version.
func NewFeatureRequestEvent(
	flag FlagEventProperties,
	key string,
	user ldmodel.User,
	variation ldvalue.OptionalInt,
	value ldvalue.Value,
	defaultVal ldvalue.Value,
	reason ldreason.EvaluationReason,
	requireReason bool,
	prereqOf string,
	creationDate ldtime.UnixMillisecondTime,
) FeatureRequestEvent {
	evt := FeatureRequestEvent{
		BaseEvent: BaseEvent{CreationDate: creationDate, User: user},
		Key:       key,
		Variation: variation,
		Value:     value,
		Default:   defaultVal,
	}
	if prereqOf != "" {
		evt.PrereqOf = prereqOf
		evt.HasPrereqOf = true
	}
	if flag != nil {
		evt.Version = flag.GetVersion()
		evt.TrackEvents = flag.IsFullEventTrackingEnabled()
		evt.DebugEventsUntilDate = flag.GetDebugEventsUntilDate()
		if flag.IsExperimentationEnabled(reason) {
			requireReason = true
		}
	}
	if requireReason || reason.GetKind() == ldreason.EvalReasonError {
		evt.Reason = reason
		evt.HasReason = true
	}
	return evt
}
