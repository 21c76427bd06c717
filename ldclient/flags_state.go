package ldclient

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
)

// FlagsStateOption modifies AllFlagsState's output.
type FlagsStateOption int

const (
	// WithReasons adds each flag's evaluation reason to $flagsState.
	WithReasons FlagsStateOption = iota
	// ClientSideOnly restricts the result to flags marked available to client-side SDKs.
	ClientSideOnly
	// DetailsOnlyForTrackedFlags omits version/reason/trackEvents metadata for flags that do
	// not have event tracking enabled, matching the compact form client-side SDKs request.
	DetailsOnlyForTrackedFlags
)

func hasOption(options []FlagsStateOption, want FlagsStateOption) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}

// AllFlagsState evaluates every known flag for user and renders the bulk snapshot format used
// by client-side bootstrapping: top-level flag-key/value pairs plus a "$flagsState" map of
// per-flag metadata and a "$valid" flag. Offline mode returns an invalid ({"$valid":false})
// state without touching the store. A per-flag panic or evaluation error never aborts the rest
// of the batch; that flag's entry simply carries its own error reason.
func (c *Client) AllFlagsState(user ldmodel.User, options ...FlagsStateOption) ldvalue.Value {
	if c.config.Offline || c.store == nil {
		return ldvalue.ObjectBuild().Set("$valid", ldvalue.Bool(false)).Build()
	}

	items, err := c.store.All(datastore.Features)
	if err != nil {
		return ldvalue.ObjectBuild().Set("$valid", ldvalue.Bool(false)).Build()
	}

	merged := ldvalue.ObjectBuild()
	state := ldvalue.ObjectBuild()
	withReasons := hasOption(options, WithReasons)
	clientSideOnly := hasOption(options, ClientSideOnly)
	compact := hasOption(options, DetailsOnlyForTrackedFlags)

	for key, item := range items {
		flag := datastore.ToFlag(item)
		if flag == nil {
			continue
		}
		if clientSideOnly && !flag.ClientSideAvailability.UsingEnvironmentID {
			continue
		}

		detail, _ := c.evaluator.EvaluateSafely(flag, user)
		if detail.IsDefaultValue() {
			detail.Value = ldvalue.Null()
		}

		merged.Set(key, detail.Value)

		trackReasonNeeded := flag.TrackEvents || (detail.Reason.GetKind() != "" && flag.DebugEventsUntilDate.IsDefined())
		if compact && !trackReasonNeeded && !withReasons {
			state.Set(key, ldvalue.ObjectBuild().
				Set("variation", optionalIntValue(detail.VariationIndex)).
				Build())
			continue
		}

		flagState := ldvalue.ObjectBuild().
			Set("version", ldvalue.Int(flag.Version)).
			Set("variation", optionalIntValue(detail.VariationIndex)).
			Set("trackEvents", ldvalue.Bool(flag.TrackEvents))
		if flag.DebugEventsUntilDate.IsDefined() {
			flagState.Set("debugEventsUntilDate", ldvalue.Int(flag.DebugEventsUntilDate.IntValue()))
		}
		if withReasons {
			flagState.Set("reason", ldvalue.CopyArbitraryValue(detail.Reason))
		}
		state.Set(key, flagState.Build())
	}

	merged.Set("$valid", ldvalue.Bool(true))
	merged.Set("$flagsState", state.Build())
	return merged.Build()
}

func optionalIntValue(v ldvalue.OptionalInt) ldvalue.Value {
	if !v.IsDefined() {
		return ldvalue.Null()
	}
	return ldvalue.Int(v.IntValue())
}
