package evaluation

import (
	"github.com/launchdarkly/go-server-sdk-core/ldbucketing"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Evaluator evaluates flags against a DataProvider and, optionally, a BigSegmentProvider.
// An Evaluator is stateless and safe for concurrent use; all per-call state lives in the
// evaluationScope created for each Evaluate call.
type Evaluator struct {
	dataProvider  DataProvider
	bigSegments   BigSegmentProvider
}

// NewEvaluator constructs an Evaluator over the given data provider. bigSegments may be nil if
// no big-segment store is configured.
func NewEvaluator(dataProvider DataProvider, bigSegments BigSegmentProvider) *Evaluator {
	return &Evaluator{dataProvider: dataProvider, bigSegments: bigSegments}
}

// evaluationScope holds the mutable state accumulated while evaluating one flag (and,
// recursively, its prerequisites) for one user. It is discarded after each Evaluate call.
type evaluationScope struct {
	evaluator          *Evaluator
	user               ldmodel.User
	prerequisiteEvents []PrerequisiteEvent
	visiting           map[string]bool
	bigSegmentsStatus  ldreason.BigSegmentsStatus
}

// EvaluateSafely is Evaluate wrapped in a recover, for callers such as AllFlagsState that must
// keep going after one flag's evaluation panics rather than aborting the whole batch.
func (e *Evaluator) EvaluateSafely(flag *ldmodel.FeatureFlag, user ldmodel.User) (detail ldreason.EvaluationDetail, prereqEvents []PrerequisiteEvent) {
	defer func() {
		if r := recover(); r != nil {
			detail = ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorException)}
			prereqEvents = nil
		}
	}()
	return e.Evaluate(flag, user)
}

// Evaluate evaluates flag for user, returning a detailed result and the sequence of
// prerequisite events generated along the way. It has no side effects on flag, user, or the
// data provider; the same inputs always produce the same outputs.
func (e *Evaluator) Evaluate(flag *ldmodel.FeatureFlag, user ldmodel.User) (ldreason.EvaluationDetail, []PrerequisiteEvent) {
	if user.Key == "" {
		return ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorUserNotSpecified)}, nil
	}

	scope := &evaluationScope{
		evaluator: e,
		user:      user,
		visiting:  map[string]bool{},
	}
	detail := scope.evaluateFlag(flag)
	if scope.bigSegmentsStatus != "" {
		detail.Reason = detail.Reason.WithBigSegmentsStatus(scope.bigSegmentsStatus)
	}
	return detail, scope.prerequisiteEvents
}

// evaluateFlag evaluates one flag, recursing into its prerequisites as needed. s.visiting
// guards against a prerequisite cycle: it is marked for flag.Key for the duration of this call,
// and a re-entrant call for the same key (found already marked on entry) short-circuits straight
// to Error(MALFORMED_FLAG) rather than recursing further.
func (s *evaluationScope) evaluateFlag(flag *ldmodel.FeatureFlag) ldreason.EvaluationDetail {
	if s.visiting[flag.Key] {
		return ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorMalformedFlag)}
	}
	s.visiting[flag.Key] = true
	defer delete(s.visiting, flag.Key)

	if !flag.On {
		return s.offResult(flag, ldreason.NewEvalReasonOff())
	}

	if prereqFailedKey, ok, errored := s.checkPrerequisites(flag); !ok {
		if errored {
			// A prerequisite itself resolved to Error (most commonly a cycle detected further
			// down); propagate the error as-is instead of routing it through offResult, whose
			// well-formed off-variation result could otherwise be mistaken by an ancestor's own
			// checkPrerequisites for a satisfied prerequisite.
			return ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorMalformedFlag)}
		}
		return s.offResult(flag, ldreason.NewEvalReasonPrerequisiteFailed(prereqFailedKey))
	}

	for _, target := range flag.Targets {
		for _, key := range target.Values {
			if key == s.user.Key {
				return s.variationResult(flag, target.Variation, ldreason.NewEvalReasonTargetMatch())
			}
		}
	}

	for i, rule := range flag.Rules {
		if !s.ruleMatches(rule) {
			continue
		}
		if detail, matched := s.resolveVariationOrRollout(flag, rule.VariationOrRollout, func(inExperiment bool) ldreason.EvaluationReason {
			return ldreason.NewEvalReasonRuleMatch(i, rule.ID, inExperiment)
		}); matched {
			return detail
		}
		// Residual rollout weight: this rule matched its clauses but its rollout resolved to
		// nothing, so it is treated as though it had not matched and scanning continues.
	}

	if detail, matched := s.resolveVariationOrRollout(flag, flag.Fallthrough, func(inExperiment bool) ldreason.EvaluationReason {
		return ldreason.NewEvalReasonFallthrough(inExperiment)
	}); matched {
		return detail
	}
	return ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorMalformedFlag)}
}

// checkPrerequisites evaluates each prerequisite flag in order, recording a PrerequisiteEvent
// for each one. It returns (failedKey, false, false) for the first prerequisite that is
// missing, off, or did not resolve to the required variation; (failedKey, false, true) if the
// prerequisite itself evaluated to an error (a cycle detected further down the chain); and
// ("", true, false) if all prerequisites pass. Cycle detection itself lives in evaluateFlag,
// via s.visiting; this only reacts to the Error result that produces.
func (s *evaluationScope) checkPrerequisites(flag *ldmodel.FeatureFlag) (failedKey string, ok bool, errored bool) {
	for _, p := range flag.Prerequisites {
		prereqFlag := s.evaluator.dataProvider.GetFeatureFlag(p.Key)
		if prereqFlag == nil {
			return p.Key, false, false
		}

		detail := s.evaluateFlag(prereqFlag)

		s.prerequisiteEvents = append(s.prerequisiteEvents, PrerequisiteEvent{
			TargetFlagKey:    flag.Key,
			User:             s.user,
			PrerequisiteFlag: *prereqFlag,
			Result:           detail,
		})

		if detail.Reason.GetKind() == ldreason.EvalReasonError {
			return p.Key, false, true
		}
		if !prereqFlag.On || !detail.VariationIndex.IsDefined() || detail.VariationIndex.IntValue() != p.Variation {
			return p.Key, false, false
		}
	}
	return "", true, false
}

func (s *evaluationScope) ruleMatches(rule ldmodel.FlagRule) bool {
	for _, c := range rule.Clauses {
		if !s.clauseMatches(c) {
			return false
		}
	}
	return true
}

// offResult resolves a flag's offVariation. An unset offVariation yields a detail with no value
// or variation index and the given reason; an out-of-range one yields MALFORMED_FLAG.
func (s *evaluationScope) offResult(flag *ldmodel.FeatureFlag, reason ldreason.EvaluationReason) ldreason.EvaluationDetail {
	if !flag.OffVariation.IsDefined() {
		return ldreason.EvaluationDetail{Reason: reason}
	}
	return s.variationResult(flag, flag.OffVariation.IntValue(), reason)
}

func (s *evaluationScope) variationResult(flag *ldmodel.FeatureFlag, index int, reason ldreason.EvaluationReason) ldreason.EvaluationDetail {
	if index < 0 || index >= len(flag.Variations) {
		return ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorMalformedFlag)}
	}
	return ldreason.NewEvaluationDetail(flag.Variations[index], index, reason)
}

// resolveVariationOrRollout resolves a VariationOrRollout to either its fixed variation, or a
// bucketed rollout variation. makeReason produces the final reason given whether the chosen
// bucket was in-experiment; it is deferred like this because the "in experiment" bit is only
// known once bucketing has run.
//
// matched is false only when the rollout hits residual weight (bucketRollout found no bracket
// containing the bucket value): the caller treats that as though this step had never matched,
// rather than as an error, so that a rule with an unresolvable rollout falls through to the next
// rule instead of aborting the whole evaluation. A fixed variation, a malformed (rollout-less)
// VariationOrRollout, or a successfully bucketed rollout are all always "matched", carrying their
// result (possibly itself an error) in detail.
func (s *evaluationScope) resolveVariationOrRollout(
	flag *ldmodel.FeatureFlag,
	vr ldmodel.VariationOrRollout,
	makeReason func(inExperiment bool) ldreason.EvaluationReason,
) (detail ldreason.EvaluationDetail, matched bool) {
	if vr.Variation.IsDefined() {
		return s.variationResult(flag, vr.Variation.IntValue(), makeReason(false)), true
	}
	if vr.Rollout == nil {
		return ldreason.EvaluationDetail{Reason: ldreason.NewEvalReasonError(ldreason.EvalErrorMalformedFlag)}, true
	}

	variation, inExperiment, ok := s.bucketRollout(flag, *vr.Rollout)
	if !ok {
		return ldreason.EvaluationDetail{}, false
	}
	return s.variationResult(flag, variation, makeReason(inExperiment)), true
}

// bucketRollout computes which rollout bracket the user falls into, walking the weighted
// variations in order and accumulating weight. Returns ok=false if the accumulated weight is
// exhausted before a bracket contains the bucket value (residual weight).
func (s *evaluationScope) bucketRollout(flag *ldmodel.FeatureFlag, rollout ldmodel.Rollout) (variation int, inExperiment bool, ok bool) {
	bucketBy := rollout.BucketBy
	if bucketBy == "" {
		bucketBy = ldmodel.KeyAttribute
	}
	idValue := s.user.GetAttribute(bucketBy)
	if idValue.IsNull() {
		idValue = ldvalue.String(s.user.Key)
	}

	secondary := ""
	if s.user.HasSecondary {
		secondary = s.user.Secondary
	}

	bucket, bucketable := ldbucketing.Bucket(idValue, flag.Key, flag.Salt, secondary)
	if !bucketable {
		bucket = 0
	}

	var sum float32
	for _, wv := range rollout.Variations {
		sum += float32(wv.Weight) / 100000.0
		if bucket < sum {
			inExp := rollout.Kind == ldmodel.RolloutKindExperiment && !wv.Untracked
			return wv.Variation, inExp, true
		}
	}
	return 0, false, false
}
