package ldmodel

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/ldreason"
)

// FeatureFlag describes a single feature flag as delivered by the control plane.
type FeatureFlag struct {
	Key                    string        `json:"key"`
	Version                int           `json:"version"`
	On                     bool          `json:"on"`
	Prerequisites          []Prerequisite `json:"prerequisites"`
	Salt                   string        `json:"salt"`
	Targets                []Target      `json:"targets"`
	Rules                  []FlagRule    `json:"rules"`
	Fallthrough            VariationOrRollout `json:"fallthrough"`
	OffVariation           ldvalue.OptionalInt `json:"offVariation"`
	Variations             []ldvalue.Value `json:"variations"`
	TrackEvents            bool          `json:"trackEvents"`
	TrackEventsFallthrough bool          `json:"trackEventsFallthrough"`
	DebugEventsUntilDate   ldvalue.OptionalInt `json:"debugEventsUntilDate"`
	Deleted                bool          `json:"deleted"`
	ClientSide             bool          `json:"clientSide"`

	// ClientSideAvailability carries the wire-format availability flags used by client-side
	// SDKs. This core does not act on it directly, but it round-trips through the streaming
	// and polling processors as part of the flag JSON.
	ClientSideAvailability ClientSideAvailability `json:"clientSideAvailability"`
}

// ClientSideAvailability describes whether a flag is exposed to client-side/mobile SDKs.
type ClientSideAvailability struct {
	UsingMobileKey     bool `json:"usingMobileKey"`
	UsingEnvironmentID bool `json:"usingEnvironmentId"`
}

// Prerequisite names another flag that must evaluate to a specific variation.
type Prerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

// Target is a fixed list of user keys that receive a specific variation.
type Target struct {
	Variation int      `json:"variation"`
	Values    []string `json:"values"`
}

// FlagRule is one entry in a flag's ordered rule list.
type FlagRule struct {
	ID                 string             `json:"id"`
	VariationOrRollout
	Clauses            []Clause `json:"clauses"`
	TrackEvents        bool     `json:"trackEvents"`
}

// VariationOrRollout is either a fixed variation index or a weighted rollout.
type VariationOrRollout struct {
	Variation ldvalue.OptionalInt `json:"variation"`
	Rollout   *Rollout            `json:"rollout"`
}

// RolloutKind distinguishes an ordinary percentage rollout from an experiment.
type RolloutKind string

const (
	// RolloutKindRollout is the default: bucketed variations with no experimentation tracking.
	RolloutKindRollout RolloutKind = "rollout"
	// RolloutKindExperiment marks a rollout whose bucketed result should be tagged
	// inExperiment=true unless the chosen bucket is in an "untracked" variation.
	RolloutKindExperiment RolloutKind = "experiment"
)

// Rollout assigns users to variations by weighted percentage buckets.
type Rollout struct {
	Variations []WeightedVariation `json:"variations"`
	BucketBy   UserAttribute       `json:"bucketBy"`
	Kind       RolloutKind         `json:"kind"`
}

// WeightedVariation is one bracket of a Rollout.
type WeightedVariation struct {
	Variation int  `json:"variation"`
	Weight    int  `json:"weight"`
	Untracked bool `json:"untracked"`
}

// GetKey returns the flag's key. Satisfies the ldevents.FlagEventProperties interface.
func (f *FeatureFlag) GetKey() string { return f.Key }

// GetVersion returns the flag's version. Satisfies the ldevents.FlagEventProperties interface.
func (f *FeatureFlag) GetVersion() int { return f.Version }

// IsFullEventTrackingEnabled reports whether every evaluation of this flag should generate an
// individual feature event regardless of rule-level tracking.
func (f *FeatureFlag) IsFullEventTrackingEnabled() bool { return f.TrackEvents }

// GetDebugEventsUntilDate returns the unix-millisecond timestamp until which debug events
// should be generated, or 0 if debugging is not enabled. Satisfies the
// ldevents.FlagEventProperties interface.
func (f *FeatureFlag) GetDebugEventsUntilDate() ldtime.UnixMillisecondTime {
	if !f.DebugEventsUntilDate.IsDefined() {
		return 0
	}
	return ldtime.UnixMillisecondTime(f.DebugEventsUntilDate.IntValue())
}

// IsExperimentationEnabled reports whether the given evaluation reason represents a rollout
// bucket or rule match that should be tracked as part of an experiment. Satisfies the
// ldevents.FlagEventProperties interface.
func (f *FeatureFlag) IsExperimentationEnabled(reason ldreason.EvaluationReason) bool {
	return reason.GetInExperiment()
}
