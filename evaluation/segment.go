package evaluation

import (
	"github.com/launchdarkly/go-server-sdk-core/ldbucketing"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// anySegmentMatches implements the segmentMatch clause operator: the clause values are segment
// keys, and the clause matches if the user matches any one of the referenced segments.
func (s *evaluationScope) anySegmentMatches(segmentKeys []ldvalue.Value) bool {
	for _, v := range segmentKeys {
		if v.Type() != ldvalue.StringType {
			continue
		}
		segment := s.evaluator.dataProvider.GetSegment(v.StringValue())
		if segment == nil {
			continue
		}
		if s.segmentMatches(segment) {
			return true
		}
	}
	return false
}

func (s *evaluationScope) segmentMatches(segment *ldmodel.Segment) bool {
	if segment.Unbounded {
		return s.bigSegmentMatches(segment)
	}

	if included, found := segment.IncludesOrExcludes(s.user.Key); found {
		return included
	}

	for _, rule := range segment.Rules {
		if s.segmentRuleMatches(segment, rule) {
			return true
		}
	}
	return false
}

func (s *evaluationScope) segmentRuleMatches(segment *ldmodel.Segment, rule ldmodel.SegmentRule) bool {
	for _, c := range rule.Clauses {
		if !s.clauseMatches(c) {
			return false
		}
	}
	if rule.Weight == nil {
		return true
	}

	bucketBy := rule.BucketBy
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
	bucket, bucketable := ldbucketing.Bucket(idValue, segment.Key, segment.Salt, secondary)
	if !bucketable {
		return false
	}
	weight := float32(*rule.Weight) / 100000.0
	return bucket < weight
}

func (s *evaluationScope) bigSegmentMatches(segment *ldmodel.Segment) bool {
	if s.evaluator.bigSegments == nil {
		s.bigSegmentsStatus = ldreason.BigSegmentsNotConfigured
		return false
	}

	membership, status := s.evaluator.bigSegments.GetUserMembership(s.user.Key)
	if statusRank(status) > statusRank(s.bigSegmentsStatus) {
		s.bigSegmentsStatus = status
	}
	if membership == nil {
		return false
	}
	switch membership.CheckMembership(segment.Key) {
	case Included:
		return true
	case Excluded:
		return false
	default:
		return false
	}
}

// statusRank orders big-segment statuses from best to worst so that, if a single evaluation
// consults more than one big segment, the worst-observed status wins.
func statusRank(status ldreason.BigSegmentsStatus) int {
	switch status {
	case ldreason.BigSegmentsHealthy:
		return 0
	case "":
		return -1
	case ldreason.BigSegmentsStale:
		return 1
	case ldreason.BigSegmentsStoreError:
		return 2
	case ldreason.BigSegmentsNotConfigured:
		return 3
	default:
		return 1
	}
}
