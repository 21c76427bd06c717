package ldreason

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// EvaluationDetail is the value, variation index, and reason produced by a flag evaluation.
type EvaluationDetail struct {
	Value          ldvalue.Value
	VariationIndex ldvalue.OptionalInt
	Reason         EvaluationReason
}

// IsDefaultValue reports whether the evaluation fell back to the caller-supplied default,
// i.e. no variation index was chosen.
func (d EvaluationDetail) IsDefaultValue() bool {
	return !d.VariationIndex.IsDefined()
}

// NewEvaluationDetail constructs a detail for a successful evaluation.
func NewEvaluationDetail(value ldvalue.Value, variationIndex int, reason EvaluationReason) EvaluationDetail {
	return EvaluationDetail{Value: value, VariationIndex: ldvalue.NewOptionalInt(variationIndex), Reason: reason}
}

// NewEvaluationError constructs a detail representing a failed evaluation: the default value
// is returned with no variation index and an Error reason.
func NewEvaluationError(defaultValue ldvalue.Value, errorKind EvalErrorKind) EvaluationDetail {
	return EvaluationDetail{Value: defaultValue, Reason: NewEvalReasonError(errorKind)}
}
