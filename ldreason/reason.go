// Package ldreason describes why a flag evaluation produced the result it did.
//
// Adapted from the reason.go/detail.go shape used throughout the LaunchDarkly Go SDK family,
// extended with the InExperiment and BigSegmentsStatus properties this core's evaluator needs
// that were not present in the older vendored version of that package.
package ldreason

import (
	"encoding/json"
	"fmt"
)

// EvalReasonKind describes the general category of an EvaluationReason.
type EvalReasonKind string

// The complete set of evaluation reason kinds.
const (
	EvalReasonOff                 EvalReasonKind = "OFF"
	EvalReasonTargetMatch         EvalReasonKind = "TARGET_MATCH"
	EvalReasonRuleMatch           EvalReasonKind = "RULE_MATCH"
	EvalReasonPrerequisiteFailed  EvalReasonKind = "PREREQUISITE_FAILED"
	EvalReasonFallthrough         EvalReasonKind = "FALLTHROUGH"
	EvalReasonError               EvalReasonKind = "ERROR"
)

// EvalErrorKind describes the general category of an evaluation error.
type EvalErrorKind string

// The complete set of evaluation error kinds.
const (
	EvalErrorClientNotReady   EvalErrorKind = "CLIENT_NOT_READY"
	EvalErrorFlagNotFound     EvalErrorKind = "FLAG_NOT_FOUND"
	EvalErrorMalformedFlag    EvalErrorKind = "MALFORMED_FLAG"
	EvalErrorUserNotSpecified EvalErrorKind = "USER_NOT_SPECIFIED"
	EvalErrorWrongType        EvalErrorKind = "WRONG_TYPE"
	EvalErrorException        EvalErrorKind = "EXCEPTION"
)

// BigSegmentsStatus describes the observed health of the big-segment store at the time a
// segmentMatch clause consulted it.
type BigSegmentsStatus string

// The complete set of big-segment status values.
const (
	BigSegmentsHealthy       BigSegmentsStatus = "HEALTHY"
	BigSegmentsStale         BigSegmentsStatus = "STALE"
	BigSegmentsNotConfigured BigSegmentsStatus = "NOT_CONFIGURED"
	BigSegmentsStoreError    BigSegmentsStatus = "STORE_ERROR"
)

// EvaluationReason describes why a flag evaluation produced a particular value. It is
// immutable; its properties can be accessed only through getter methods.
type EvaluationReason struct {
	kind              EvalReasonKind
	ruleIndex         int
	ruleID            string
	prerequisiteKey   string
	errorKind         EvalErrorKind
	inExperiment      bool
	bigSegmentsStatus BigSegmentsStatus
}

// String returns a concise representation, e.g. "OFF", "ERROR(WRONG_TYPE)".
func (r EvaluationReason) String() string {
	switch r.kind {
	case EvalReasonRuleMatch:
		return fmt.Sprintf("%s(%d,%s)", r.kind, r.ruleIndex, r.ruleID)
	case EvalReasonPrerequisiteFailed:
		return fmt.Sprintf("%s(%s)", r.kind, r.prerequisiteKey)
	case EvalReasonError:
		return fmt.Sprintf("%s(%s)", r.kind, r.errorKind)
	default:
		return string(r.kind)
	}
}

// GetKind describes the general category of the reason.
func (r EvaluationReason) GetKind() EvalReasonKind { return r.kind }

// GetRuleIndex returns the index of the matched rule, or -1 if Kind is not EvalReasonRuleMatch.
func (r EvaluationReason) GetRuleIndex() int {
	if r.kind == EvalReasonRuleMatch {
		return r.ruleIndex
	}
	return -1
}

// GetRuleID returns the stable identifier of the matched rule, if any.
func (r EvaluationReason) GetRuleID() string { return r.ruleID }

// GetPrerequisiteKey returns the key of the prerequisite that failed, if any.
func (r EvaluationReason) GetPrerequisiteKey() string { return r.prerequisiteKey }

// GetErrorKind describes the category of the error, if Kind is EvalReasonError.
func (r EvaluationReason) GetErrorKind() EvalErrorKind { return r.errorKind }

// GetInExperiment reports whether this evaluation should be tracked as part of an experiment,
// applicable to Fallthrough and RuleMatch reasons produced by an experiment rollout.
func (r EvaluationReason) GetInExperiment() bool { return r.inExperiment }

// GetBigSegmentsStatus returns the health of the big-segment store as observed during this
// evaluation, or "" if no big segment was consulted.
func (r EvaluationReason) GetBigSegmentsStatus() BigSegmentsStatus { return r.bigSegmentsStatus }

// WithBigSegmentsStatus returns a copy of r with its BigSegmentsStatus set. Used by the
// evaluator after a segmentMatch clause has consulted the big-segment wrapper.
func (r EvaluationReason) WithBigSegmentsStatus(status BigSegmentsStatus) EvaluationReason {
	r.bigSegmentsStatus = status
	return r
}

// NewEvalReasonOff returns a reason with Kind EvalReasonOff.
func NewEvalReasonOff() EvaluationReason { return EvaluationReason{kind: EvalReasonOff} }

// NewEvalReasonFallthrough returns a reason with Kind EvalReasonFallthrough.
func NewEvalReasonFallthrough(inExperiment bool) EvaluationReason {
	return EvaluationReason{kind: EvalReasonFallthrough, inExperiment: inExperiment}
}

// NewEvalReasonTargetMatch returns a reason with Kind EvalReasonTargetMatch.
func NewEvalReasonTargetMatch() EvaluationReason {
	return EvaluationReason{kind: EvalReasonTargetMatch}
}

// NewEvalReasonRuleMatch returns a reason with Kind EvalReasonRuleMatch.
func NewEvalReasonRuleMatch(ruleIndex int, ruleID string, inExperiment bool) EvaluationReason {
	return EvaluationReason{kind: EvalReasonRuleMatch, ruleIndex: ruleIndex, ruleID: ruleID, inExperiment: inExperiment}
}

// NewEvalReasonPrerequisiteFailed returns a reason with Kind EvalReasonPrerequisiteFailed.
func NewEvalReasonPrerequisiteFailed(prereqKey string) EvaluationReason {
	return EvaluationReason{kind: EvalReasonPrerequisiteFailed, prerequisiteKey: prereqKey}
}

// NewEvalReasonError returns a reason with Kind EvalReasonError.
func NewEvalReasonError(errorKind EvalErrorKind) EvaluationReason {
	return EvaluationReason{kind: EvalReasonError, errorKind: errorKind}
}

type evaluationReasonForMarshaling struct {
	Kind              EvalReasonKind    `json:"kind"`
	RuleIndex         *int              `json:"ruleIndex,omitempty"`
	RuleID            string            `json:"ruleId,omitempty"`
	PrerequisiteKey   string            `json:"prerequisiteKey,omitempty"`
	ErrorKind         EvalErrorKind     `json:"errorKind,omitempty"`
	InExperiment      bool              `json:"inExperiment,omitempty"`
	BigSegmentsStatus BigSegmentsStatus `json:"bigSegmentsStatus,omitempty"`
}

// MarshalJSON implements custom JSON serialization for EvaluationReason.
func (r EvaluationReason) MarshalJSON() ([]byte, error) {
	if r.kind == "" {
		return []byte("null"), nil
	}
	erm := evaluationReasonForMarshaling{
		Kind:              r.kind,
		RuleID:            r.ruleID,
		PrerequisiteKey:   r.prerequisiteKey,
		ErrorKind:         r.errorKind,
		InExperiment:      r.inExperiment,
		BigSegmentsStatus: r.bigSegmentsStatus,
	}
	if r.kind == EvalReasonRuleMatch {
		erm.RuleIndex = &r.ruleIndex
	}
	return json.Marshal(erm)
}

// UnmarshalJSON implements custom JSON deserialization for EvaluationReason.
func (r *EvaluationReason) UnmarshalJSON(data []byte) error {
	var erm evaluationReasonForMarshaling
	if err := json.Unmarshal(data, &erm); err != nil {
		return err
	}
	*r = EvaluationReason{
		kind:              erm.Kind,
		ruleID:            erm.RuleID,
		prerequisiteKey:   erm.PrerequisiteKey,
		errorKind:         erm.ErrorKind,
		inExperiment:      erm.InExperiment,
		bigSegmentsStatus: erm.BigSegmentsStatus,
	}
	if erm.RuleIndex != nil {
		r.ruleIndex = *erm.RuleIndex
	}
	return nil
}
