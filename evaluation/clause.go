package evaluation

import (
	"regexp"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// clauseMatches evaluates a single clause against the user. It never returns an error: an
// operator applied to values it cannot handle simply returns false for that comparison.
func (e *evaluationScope) clauseMatches(c ldmodel.Clause) bool {
	if c.Op == ldmodel.OperatorSegmentMatch {
		return maybeNegate(c.Negate, e.anySegmentMatches(c.Values))
	}

	userValue := e.user.GetAttribute(c.Attribute)
	if userValue.IsNull() {
		// Per the reference behavior, a clause against an attribute the user does not have
		// never matches, and negate does not flip that: there is nothing to negate.
		return false
	}

	var matched bool
	if userValue.Type() == ldvalue.ArrayType {
		for _, element := range userValue.AsValueArray().AsSlice() {
			if matchesAnyClauseValue(c.Op, element, c.Values) {
				matched = true
				break
			}
		}
	} else {
		matched = matchesAnyClauseValue(c.Op, userValue, c.Values)
	}
	return maybeNegate(c.Negate, matched)
}

func maybeNegate(negate bool, result bool) bool {
	if negate {
		return !result
	}
	return result
}

func matchesAnyClauseValue(op ldmodel.Operator, userValue ldvalue.Value, clauseValues []ldvalue.Value) bool {
	fn := operatorFns[op]
	if fn == nil {
		return false
	}
	for _, cv := range clauseValues {
		if fn(userValue, cv) {
			return true
		}
	}
	return false
}

type operatorFn func(userValue, clauseValue ldvalue.Value) bool

var operatorFns = map[ldmodel.Operator]operatorFn{
	ldmodel.OperatorIn:                 operatorIn,
	ldmodel.OperatorEndsWith:           stringOperator(func(a, b string) bool { return len(a) >= len(b) && a[len(a)-len(b):] == b }),
	ldmodel.OperatorStartsWith:         stringOperator(func(a, b string) bool { return len(a) >= len(b) && a[:len(b)] == b }),
	ldmodel.OperatorContains:           stringOperator(func(a, b string) bool { return containsSubstring(a, b) }),
	ldmodel.OperatorMatches:            operatorMatches,
	ldmodel.OperatorLessThan:           numericOperator(func(a, b float64) bool { return a < b }),
	ldmodel.OperatorLessThanOrEqual:    numericOperator(func(a, b float64) bool { return a <= b }),
	ldmodel.OperatorGreaterThan:        numericOperator(func(a, b float64) bool { return a > b }),
	ldmodel.OperatorGreaterThanOrEqual: numericOperator(func(a, b float64) bool { return a >= b }),
	ldmodel.OperatorBefore:             dateOperator(func(a, b int64) bool { return a < b }),
	ldmodel.OperatorAfter:              dateOperator(func(a, b int64) bool { return a > b }),
	ldmodel.OperatorSemVerEqual:        semVerOperator(func(cmp int) bool { return cmp == 0 }),
	ldmodel.OperatorSemVerLessThan:     semVerOperator(func(cmp int) bool { return cmp < 0 }),
	ldmodel.OperatorSemVerGreaterThan:  semVerOperator(func(cmp int) bool { return cmp > 0 }),
}

// operatorIn implements equality, coercing between int and float on both sides so that
// cross-implementation numeric comparisons agree (see the "Open questions" note in the core
// spec about precision above 2^53).
func operatorIn(userValue, clauseValue ldvalue.Value) bool {
	if userValue.Type() == ldvalue.NumberType && clauseValue.Type() == ldvalue.NumberType {
		return userValue.Float64Value() == clauseValue.Float64Value()
	}
	return userValue.Equal(clauseValue)
}

func stringOperator(fn func(a, b string) bool) operatorFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		if userValue.Type() != ldvalue.StringType || clauseValue.Type() != ldvalue.StringType {
			return false
		}
		return fn(userValue.StringValue(), clauseValue.StringValue())
	}
}

func containsSubstring(a, b string) bool {
	if len(b) == 0 {
		return true
	}
	for i := 0; i+len(b) <= len(a); i++ {
		if a[i:i+len(b)] == b {
			return true
		}
	}
	return false
}

func operatorMatches(userValue, clauseValue ldvalue.Value) bool {
	if userValue.Type() != ldvalue.StringType || clauseValue.Type() != ldvalue.StringType {
		return false
	}
	re, err := regexp.Compile(clauseValue.StringValue())
	if err != nil {
		return false
	}
	return re.MatchString(userValue.StringValue())
}

func numericOperator(fn func(a, b float64) bool) operatorFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		if userValue.Type() != ldvalue.NumberType || clauseValue.Type() != ldvalue.NumberType {
			return false
		}
		return fn(userValue.Float64Value(), clauseValue.Float64Value())
	}
}

func dateOperator(fn func(a, b int64) bool) operatorFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		ut, ok1 := ldmodel.ParseDateTime(userValue)
		ct, ok2 := ldmodel.ParseDateTime(clauseValue)
		if !ok1 || !ok2 {
			return false
		}
		return fn(ut.UnixMilli(), ct.UnixMilli())
	}
}

func semVerOperator(fn func(cmp int) bool) operatorFn {
	return func(userValue, clauseValue ldvalue.Value) bool {
		uv, ok1 := ldmodel.ParseSemVer(userValue)
		cv, ok2 := ldmodel.ParseSemVer(clauseValue)
		if !ok1 || !ok2 {
			return false
		}
		return fn(uv.Compare(cv))
	}
}
