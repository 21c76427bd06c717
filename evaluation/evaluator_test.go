package evaluation

import (
	"testing"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataProvider struct {
	flags    map[string]*ldmodel.FeatureFlag
	segments map[string]*ldmodel.Segment
}

func newFakeDataProvider() *fakeDataProvider {
	return &fakeDataProvider{flags: map[string]*ldmodel.FeatureFlag{}, segments: map[string]*ldmodel.Segment{}}
}

func (f *fakeDataProvider) GetFeatureFlag(key string) *ldmodel.FeatureFlag { return f.flags[key] }
func (f *fakeDataProvider) GetSegment(key string) *ldmodel.Segment         { return f.segments[key] }

func boolFlag(key string, on bool, offVariation int) *ldmodel.FeatureFlag {
	return &ldmodel.FeatureFlag{
		Key:          key,
		On:           on,
		OffVariation: ldvalue.NewOptionalInt(offVariation),
		Variations:   []ldvalue.Value{ldvalue.Bool(true)},
		Fallthrough:  ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
	}
}

func TestScenario1FlagOff(t *testing.T) {
	flag := boolFlag("key", false, 0)
	e := NewEvaluator(newFakeDataProvider(), nil)
	detail, events := e.Evaluate(flag, ldmodel.User{Key: "userkey"})
	assert.Empty(t, events)
	assert.Equal(t, ldvalue.Bool(true), detail.Value)
	assert.Equal(t, 0, detail.VariationIndex.IntValue())
	assert.Equal(t, ldreason.EvalReasonOff, detail.Reason.GetKind())
}

func TestScenario2WrongTypeIsCallerResponsibility(t *testing.T) {
	flag := &ldmodel.FeatureFlag{
		Key:          "key",
		On:           false,
		OffVariation: ldvalue.NewOptionalInt(1),
		Variations:   []ldvalue.Value{ldvalue.String("x"), ldvalue.String("value2")},
		Fallthrough:  ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
	}
	e := NewEvaluator(newFakeDataProvider(), nil)
	detail, _ := e.Evaluate(flag, ldmodel.User{Key: "userkey"})
	assert.Equal(t, ldvalue.String("value2"), detail.Value)
	assert.False(t, detail.Value.Equal(ldvalue.Int(1)))
}

func TestPrerequisiteChainAndEventOrder(t *testing.T) {
	dp := newFakeDataProvider()
	c := boolFlag("c", true, 0)
	c.Fallthrough = ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)}
	e := boolFlag("e", true, 0)
	b := boolFlag("b", true, 0)
	b.Prerequisites = []ldmodel.Prerequisite{{Key: "c", Variation: 0}, {Key: "e", Variation: 0}}
	a := boolFlag("a", true, 0)
	a.Prerequisites = []ldmodel.Prerequisite{{Key: "b", Variation: 0}, {Key: "c", Variation: 0}}
	dp.flags["a"] = a
	dp.flags["b"] = b
	dp.flags["c"] = c
	dp.flags["e"] = e

	ev := NewEvaluator(dp, nil)
	detail, events := ev.Evaluate(a, ldmodel.User{Key: "u"})
	assert.Equal(t, ldreason.EvalReasonFallthrough, detail.Reason.GetKind())
	require.Len(t, events, 4)
	assert.Equal(t, "c", events[0].PrerequisiteFlag.Key)
	assert.Equal(t, "b", events[0].TargetFlagKey)
	assert.Equal(t, "e", events[1].PrerequisiteFlag.Key)
	assert.Equal(t, "b", events[2].PrerequisiteFlag.Key)
	assert.Equal(t, "c", events[3].PrerequisiteFlag.Key)
}

func TestPrerequisiteFailureShortCircuitsToOff(t *testing.T) {
	dp := newFakeDataProvider()
	b := boolFlag("b", false, 0)
	a := boolFlag("a", true, 0)
	a.Prerequisites = []ldmodel.Prerequisite{{Key: "b", Variation: 0}}
	dp.flags["a"] = a
	dp.flags["b"] = b

	ev := NewEvaluator(dp, nil)
	detail, events := ev.Evaluate(a, ldmodel.User{Key: "u"})
	require.Len(t, events, 1)
	assert.Equal(t, ldreason.EvalReasonPrerequisiteFailed, detail.Reason.GetKind())
	assert.Equal(t, "b", detail.Reason.GetPrerequisiteKey())
}

func TestCyclicPrerequisitesEvaluateToMalformedFlag(t *testing.T) {
	dp := newFakeDataProvider()
	a := boolFlag("a", true, 0)
	a.Prerequisites = []ldmodel.Prerequisite{{Key: "b", Variation: 0}}
	b := boolFlag("b", true, 0)
	b.Prerequisites = []ldmodel.Prerequisite{{Key: "a", Variation: 0}}
	dp.flags["a"] = a
	dp.flags["b"] = b

	ev := NewEvaluator(dp, nil)

	detailA, _ := ev.Evaluate(a, ldmodel.User{Key: "u"})
	assert.Equal(t, ldreason.EvalReasonError, detailA.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, detailA.Reason.GetErrorKind())

	detailB, _ := ev.Evaluate(b, ldmodel.User{Key: "u"})
	assert.Equal(t, ldreason.EvalReasonError, detailB.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, detailB.Reason.GetErrorKind())
}

func TestScenario4SegmentIncludeWinsOverExclude(t *testing.T) {
	dp := newFakeDataProvider()
	dp.segments["s"] = &ldmodel.Segment{Key: "s", Included: []string{"foo"}, Excluded: []string{"foo"}}
	flag := boolFlag("key", true, 0)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID:                 "rule1",
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
			Clauses: []ldmodel.Clause{
				{Attribute: ldmodel.KeyAttribute, Op: ldmodel.OperatorSegmentMatch, Values: []ldvalue.Value{ldvalue.String("s")}},
			},
		},
	}
	ev := NewEvaluator(dp, nil)
	detail, _ := ev.Evaluate(flag, ldmodel.User{Key: "foo"})
	assert.Equal(t, ldreason.EvalReasonRuleMatch, detail.Reason.GetKind())
}

func TestEmptyUserKeyIsError(t *testing.T) {
	flag := boolFlag("key", true, 0)
	ev := NewEvaluator(newFakeDataProvider(), nil)
	detail, events := ev.Evaluate(flag, ldmodel.User{})
	assert.Empty(t, events)
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorUserNotSpecified, detail.Reason.GetErrorKind())
}

func TestClauseInOperatorNumericCoercion(t *testing.T) {
	flag := boolFlag("key", true, 0)
	flag.Rules = []ldmodel.FlagRule{
		{
			ID:                 "rule1",
			VariationOrRollout: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(0)},
			Clauses: []ldmodel.Clause{
				{Attribute: "score", Op: ldmodel.OperatorIn, Values: []ldvalue.Value{ldvalue.Float64(5)}},
			},
		},
	}
	ev := NewEvaluator(newFakeDataProvider(), nil)
	detail, _ := ev.Evaluate(flag, ldmodel.User{Key: "u", Custom: map[string]ldvalue.Value{"score": ldvalue.Int(5)}})
	assert.Equal(t, ldreason.EvalReasonRuleMatch, detail.Reason.GetKind())
}

func TestResidualRolloutWeightFallsThroughToError(t *testing.T) {
	flag := boolFlag("key", true, 0)
	flag.Variations = []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)}
	flag.Fallthrough = ldmodel.VariationOrRollout{
		Rollout: &ldmodel.Rollout{
			Variations: []ldmodel.WeightedVariation{{Variation: 0, Weight: 1}},
		},
	}
	ev := NewEvaluator(newFakeDataProvider(), nil)
	detail, _ := ev.Evaluate(flag, ldmodel.User{Key: "some-user-that-does-not-bucket-into-1-percent"})
	assert.Equal(t, ldreason.EvalReasonError, detail.Reason.GetKind())
	assert.Equal(t, ldreason.EvalErrorMalformedFlag, detail.Reason.GetErrorKind())
}

func TestRuleWithResidualRolloutWeightFallsThroughToNextRule(t *testing.T) {
	flag := boolFlag("key", true, 0)
	flag.Variations = []ldvalue.Value{ldvalue.Bool(false), ldvalue.Bool(true)}
	flag.Rules = []ldmodel.FlagRule{
		{
			ID: "rule1",
			VariationOrRollout: ldmodel.VariationOrRollout{
				Rollout: &ldmodel.Rollout{
					Variations: []ldmodel.WeightedVariation{{Variation: 0, Weight: 1}},
				},
			},
			// No clauses: matches every user, so only the rollout's own residual weight can
			// keep this rule from resolving.
		},
	}
	flag.Fallthrough = ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(1)}
	ev := NewEvaluator(newFakeDataProvider(), nil)
	detail, _ := ev.Evaluate(flag, ldmodel.User{Key: "some-user-that-does-not-bucket-into-1-percent"})
	assert.Equal(t, ldreason.EvalReasonFallthrough, detail.Reason.GetKind())
	assert.Equal(t, ldvalue.Bool(true), detail.Value)
}
