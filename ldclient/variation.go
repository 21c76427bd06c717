package ldclient

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
	"github.com/launchdarkly/go-server-sdk-core/ldevents"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
)

// BoolVariation returns the bool-typed value of flagKey for user, or defaultValue on any error.
func (c *Client) BoolVariation(flagKey string, user ldmodel.User, defaultValue bool) bool {
	detail, _ := c.variation(flagKey, user, ldvalue.Bool(defaultValue), false)
	return detail.Value.BoolValue()
}

// BoolVariationDetail is like BoolVariation but also returns the reason the value was chosen.
func (c *Client) BoolVariationDetail(flagKey string, user ldmodel.User, defaultValue bool) (bool, ldreason.EvaluationReason) {
	detail, _ := c.variation(flagKey, user, ldvalue.Bool(defaultValue), true)
	return detail.Value.BoolValue(), detail.Reason
}

// StringVariation returns the string-typed value of flagKey for user, or defaultValue on any error.
func (c *Client) StringVariation(flagKey string, user ldmodel.User, defaultValue string) string {
	detail, _ := c.variation(flagKey, user, ldvalue.String(defaultValue), false)
	return detail.Value.StringValue()
}

// StringVariationDetail is like StringVariation but also returns the reason the value was chosen.
func (c *Client) StringVariationDetail(flagKey string, user ldmodel.User, defaultValue string) (string, ldreason.EvaluationReason) {
	detail, _ := c.variation(flagKey, user, ldvalue.String(defaultValue), true)
	return detail.Value.StringValue(), detail.Reason
}

// IntVariation returns the int-typed value of flagKey for user, or defaultValue on any error.
func (c *Client) IntVariation(flagKey string, user ldmodel.User, defaultValue int) int {
	detail, _ := c.variation(flagKey, user, ldvalue.Int(defaultValue), false)
	return detail.Value.IntValue()
}

// IntVariationDetail is like IntVariation but also returns the reason the value was chosen.
func (c *Client) IntVariationDetail(flagKey string, user ldmodel.User, defaultValue int) (int, ldreason.EvaluationReason) {
	detail, _ := c.variation(flagKey, user, ldvalue.Int(defaultValue), true)
	return detail.Value.IntValue(), detail.Reason
}

// Float64Variation returns the float64-typed value of flagKey for user, or defaultValue on any error.
func (c *Client) Float64Variation(flagKey string, user ldmodel.User, defaultValue float64) float64 {
	detail, _ := c.variation(flagKey, user, ldvalue.Float64(defaultValue), false)
	return detail.Value.Float64Value()
}

// Float64VariationDetail is like Float64Variation but also returns the reason the value was chosen.
func (c *Client) Float64VariationDetail(flagKey string, user ldmodel.User, defaultValue float64) (float64, ldreason.EvaluationReason) {
	detail, _ := c.variation(flagKey, user, ldvalue.Float64(defaultValue), true)
	return detail.Value.Float64Value(), detail.Reason
}

// JSONVariation returns the raw JSON-typed value of flagKey for user, or defaultValue on any
// error. A null defaultValue accepts a flag value of any JSON type; a non-null defaultValue
// produces a WRONG_TYPE error when the flag's value has a different JSON type.
func (c *Client) JSONVariation(flagKey string, user ldmodel.User, defaultValue ldvalue.Value) ldvalue.Value {
	detail, _ := c.variation(flagKey, user, defaultValue, false)
	return detail.Value
}

// JSONVariationDetail is like JSONVariation but also returns the reason the value was chosen.
func (c *Client) JSONVariationDetail(flagKey string, user ldmodel.User, defaultValue ldvalue.Value) (ldvalue.Value, ldreason.EvaluationReason) {
	detail, _ := c.variation(flagKey, user, defaultValue, true)
	return detail.Value, detail.Reason
}

// variation performs the evaluation shared by every typed accessor: input validation, the
// not-initialized/flag-not-found fallbacks, the wrong-type coercion against
// defaultValue's type, and analytics event emission for both the terminal flag and any
// prerequisites it recursively evaluated.
func (c *Client) variation(flagKey string, user ldmodel.User, defaultValue ldvalue.Value, requireReason bool) (ldreason.EvaluationDetail, error) {
	if user.Key == "" {
		detail := ldreason.NewEvaluationError(defaultValue, ldreason.EvalErrorUserNotSpecified)
		return detail, nil
	}

	flag := c.lookupFlag(flagKey)
	if flag == nil {
		detail := ldreason.NewEvaluationError(defaultValue, ldreason.EvalErrorFlagNotFound)
		c.sendFeatureEvent(nil, flagKey, user, detail, defaultValue, requireReason, "")
		return detail, nil
	}

	if !c.Initialized() {
		if storeReady, err := c.store.Initialized(); err != nil || !storeReady {
			detail := ldreason.NewEvaluationError(defaultValue, ldreason.EvalErrorClientNotReady)
			c.sendFeatureEvent(flag, flagKey, user, detail, defaultValue, requireReason, "")
			return detail, nil
		}
	}

	detail, prereqEvents := c.evaluator.Evaluate(flag, user)
	for _, pe := range prereqEvents {
		c.sendFeatureEvent(&pe.PrerequisiteFlag, pe.PrerequisiteFlag.Key, pe.User, pe.Result, ldvalue.Null(), requireReason, pe.TargetFlagKey)
	}

	// The evaluator reports no variation (e.g. off with no offVariation, or an internal error)
	// by leaving Value null; the facade is responsible for substituting the caller's default.
	if detail.IsDefaultValue() {
		detail.Value = defaultValue
	}

	if !defaultValue.IsNull() && !detail.Value.IsNull() && detail.Value.Type() != defaultValue.Type() {
		wrongType := ldreason.NewEvaluationError(defaultValue, ldreason.EvalErrorWrongType)
		c.sendFeatureEvent(flag, flagKey, user, wrongType, defaultValue, requireReason, "")
		return wrongType, nil
	}

	c.sendFeatureEvent(flag, flagKey, user, detail, defaultValue, requireReason, "")
	return detail, nil
}

func (c *Client) lookupFlag(key string) *ldmodel.FeatureFlag {
	if c.store == nil {
		return nil
	}
	item, err := c.store.Get(datastore.Features, key)
	if err != nil {
		return nil
	}
	return datastore.ToFlag(item)
}

// sendFeatureEvent builds and sends the FeatureRequestEvent for one evaluation, folding in the
// causing rule's own trackEvents flag when the reason is a rule match, matching the summary
// pipeline's rule that a flag-level or rule-level track setting each independently force a full
// event.
func (c *Client) sendFeatureEvent(
	flag *ldmodel.FeatureFlag,
	key string,
	user ldmodel.User,
	detail ldreason.EvaluationDetail,
	defaultValue ldvalue.Value,
	requireReason bool,
	prereqOf string,
) {
	// flag is passed through a *ldmodel.FeatureFlag param rather than the interface itself so
	// that a nil flag (unknown flag key) reaches NewFeatureRequestEvent as a true nil interface,
	// not a non-nil interface holding a nil pointer, which would make its own flag != nil check
	// pass and then panic dereferencing the nil receiver.
	var flagProps ldevents.FlagEventProperties
	if flag != nil {
		flagProps = flag
	}
	variation := detail.VariationIndex
	evt := ldevents.NewFeatureRequestEvent(flagProps, key, user, variation, detail.Value, defaultValue,
		detail.Reason, requireReason, prereqOf, ldtime.UnixMillisNow())
	if flag != nil && detail.Reason.GetKind() == ldreason.EvalReasonRuleMatch {
		if idx := detail.Reason.GetRuleIndex(); idx >= 0 && idx < len(flag.Rules) && flag.Rules[idx].TrackEvents {
			evt.TrackEvents = true
		}
	}
	c.events.SendEvent(evt)
}
