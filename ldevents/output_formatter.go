package ldevents

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
)

// eventOutputFormatter renders buffered events and a summary snapshot into the wire-format JSON
// array the events service expects.
type eventOutputFormatter struct {
	config EventsConfiguration
}

func (f eventOutputFormatter) makeOutputEvents(events []Event, summary eventSummary) []ldvalue.Value {
	out := make([]ldvalue.Value, 0, len(events)+1)
	for _, evt := range events {
		if v, ok := f.makeOutputEvent(evt); ok {
			out = append(out, v)
		}
	}
	if len(summary.counters) > 0 {
		out = append(out, f.makeSummaryEvent(summary))
	}
	return out
}

func (f eventOutputFormatter) makeOutputEvent(evt Event) (ldvalue.Value, bool) {
	switch e := evt.(type) {
	case FeatureRequestEvent:
		return f.makeFeatureEvent(e), true
	case IdentifyEvent:
		return ldvalue.ObjectBuild().
			Set("kind", ldvalue.String("identify")).
			Set("creationDate", ldvalue.Float64(float64(e.CreationDate))).
			Set("key", ldvalue.String(e.User.Key)).
			Set("user", f.userJSON(e.User)).
			Build(), true
	case IndexEvent:
		return ldvalue.ObjectBuild().
			Set("kind", ldvalue.String("index")).
			Set("creationDate", ldvalue.Float64(float64(e.CreationDate))).
			Set("user", f.userJSON(e.User)).
			Build(), true
	case CustomEvent:
		b := ldvalue.ObjectBuild().
			Set("kind", ldvalue.String("custom")).
			Set("creationDate", ldvalue.Float64(float64(e.CreationDate))).
			Set("key", ldvalue.String(e.Key)).
			Set("userKey", ldvalue.String(e.User.Key))
		if !e.Data.IsNull() {
			b.Set("data", e.Data)
		}
		if e.HasMetric {
			b.Set("metricValue", ldvalue.Float64(e.MetricValue))
		}
		if f.config.InlineUsersInEvents {
			b.Set("user", f.userJSON(e.User))
		}
		return b.Build(), true
	default:
		return ldvalue.Null(), false
	}
}

func (f eventOutputFormatter) makeFeatureEvent(e FeatureRequestEvent) ldvalue.Value {
	kind := "feature"
	if e.Debug {
		kind = "debug"
	}
	b := ldvalue.ObjectBuild().
		Set("kind", ldvalue.String(kind)).
		Set("creationDate", ldvalue.Float64(float64(e.CreationDate))).
		Set("key", ldvalue.String(e.Key)).
		Set("value", e.Value).
		Set("default", e.Default)
	if e.Version > 0 {
		b.Set("version", ldvalue.Int(e.Version))
	}
	if e.Variation.IsDefined() {
		b.Set("variation", ldvalue.Int(e.Variation.IntValue()))
	}
	if e.HasPrereqOf {
		b.Set("prereqOf", ldvalue.String(e.PrereqOf))
	}
	if e.HasReason {
		b.Set("reason", ldvalue.CopyArbitraryValue(e.Reason))
	}
	if e.Debug || f.config.InlineUsersInEvents {
		b.Set("user", f.userJSON(e.User))
	} else {
		b.Set("userKey", ldvalue.String(e.User.Key))
	}
	return b.Build()
}

func (f eventOutputFormatter) makeSummaryEvent(summary eventSummary) ldvalue.Value {
	features := ldvalue.ObjectBuild()
	byFlag := map[string]*flagSummaryAccumulator{}
	order := make([]string, 0)

	for key, counter := range summary.counters {
		acc, ok := byFlag[key.key]
		if !ok {
			acc = &flagSummaryAccumulator{
				def:      counter.flagDefault,
				counters: ldvalue.ArrayBuild(),
			}
			byFlag[key.key] = acc
			order = append(order, key.key)
		}
		entry := ldvalue.ObjectBuild().
			Set("value", counter.flagValue).
			Set("count", ldvalue.Int(counter.count))
		if key.hasVariation {
			entry.Set("variation", ldvalue.Int(key.variation))
		} else {
			entry.Set("unknown", ldvalue.Bool(true))
		}
		if key.version > 0 {
			entry.Set("version", ldvalue.Int(key.version))
		}
		acc.counters.Add(entry.Build())
	}

	for _, flagKey := range order {
		acc := byFlag[flagKey]
		features.Set(flagKey, ldvalue.ObjectBuild().
			Set("default", acc.def).
			Set("counters", acc.counters.Build()).
			Build())
	}

	return ldvalue.ObjectBuild().
		Set("kind", ldvalue.String("summary")).
		Set("startDate", ldvalue.Float64(float64(summary.startDate))).
		Set("endDate", ldvalue.Float64(float64(summary.endDate))).
		Set("features", features.Build()).
		Build()
}

type flagSummaryAccumulator struct {
	def      ldvalue.Value
	counters *ldvalue.ArrayBuilder
}

// userJSON renders the built-in and custom attributes of a user for inclusion in event JSON.
// This module carries no private-attribute redaction: the user model has no notion of private
// attributes (see ldmodel.User), so there is nothing here for a filter to strip.
func (f eventOutputFormatter) userJSON(u ldmodel.User) ldvalue.Value {
	b := ldvalue.ObjectBuild().Set("key", ldvalue.String(u.Key))
	if u.HasSecondary {
		b.Set("secondary", ldvalue.String(u.Secondary))
	}
	if u.Anonymous {
		b.Set("anonymous", ldvalue.Bool(true))
	}
	setIfPresent(b, "ip", u.IP)
	setIfPresent(b, "country", u.Country)
	setIfPresent(b, "email", u.Email)
	setIfPresent(b, "firstName", u.FirstName)
	setIfPresent(b, "lastName", u.LastName)
	setIfPresent(b, "avatar", u.Avatar)
	setIfPresent(b, "name", u.Name)
	if len(u.Custom) > 0 {
		custom := ldvalue.ObjectBuildWithCapacity(len(u.Custom))
		for k, v := range u.Custom {
			custom.Set(k, v)
		}
		b.Set("custom", custom.Build())
	}
	return b.Build()
}

func setIfPresent(b *ldvalue.ObjectBuilder, name, value string) {
	if value != "" {
		b.Set(name, ldvalue.String(value))
	}
}
