package bigsegments

import "github.com/launchdarkly/go-server-sdk-core/evaluation"

// membership adapts a StoreMembership record into the evaluator's BigSegmentMembership
// interface. Included beats excluded, matching the contract in evaluation.BigSegmentMembership.
type membership struct {
	included map[string]bool
	excluded map[string]bool
}

func newMembership(m StoreMembership) membership {
	result := membership{}
	if len(m.Included) > 0 {
		result.included = make(map[string]bool, len(m.Included))
		for _, ref := range m.Included {
			result.included[ref] = true
		}
	}
	if len(m.Excluded) > 0 {
		result.excluded = make(map[string]bool, len(m.Excluded))
		for _, ref := range m.Excluded {
			result.excluded[ref] = true
		}
	}
	return result
}

func (m membership) CheckMembership(segmentRef string) evaluation.Tristate {
	if m.included[segmentRef] {
		return evaluation.Included
	}
	if m.excluded[segmentRef] {
		return evaluation.Excluded
	}
	return evaluation.Unknown
}
