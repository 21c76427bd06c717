package ldmodel

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// Operator names one of the comparison tests a Clause can apply.
type Operator string

// The complete set of clause operators recognized by the evaluator. Any other string is an
// unknown operator and never matches.
const (
	OperatorIn                 Operator = "in"
	OperatorEndsWith           Operator = "endsWith"
	OperatorStartsWith         Operator = "startsWith"
	OperatorMatches            Operator = "matches"
	OperatorContains           Operator = "contains"
	OperatorLessThan           Operator = "lessThan"
	OperatorLessThanOrEqual    Operator = "lessThanOrEqual"
	OperatorGreaterThan        Operator = "greaterThan"
	OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OperatorBefore             Operator = "before"
	OperatorAfter              Operator = "after"
	OperatorSemVerEqual        Operator = "semVerEqual"
	OperatorSemVerLessThan     Operator = "semVerLessThan"
	OperatorSemVerGreaterThan  Operator = "semVerGreaterThan"
	OperatorSegmentMatch       Operator = "segmentMatch"
)

// Clause is a single condition within a Rule or SegmentRule.
type Clause struct {
	Attribute UserAttribute   `json:"attribute"`
	Op        Operator        `json:"op"`
	Values    []ldvalue.Value `json:"values"`
	Negate    bool            `json:"negate"`
}
