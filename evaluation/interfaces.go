// Package evaluation implements the pure flag-evaluation engine: rule matching, prerequisite
// graph traversal, bucketing, segment matching, and typed-result production.
package evaluation

import (
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/ldreason"
)

// DataProvider is the read-only view of the data store that the evaluator consults for flags
// and segments referenced during evaluation. Both lookups return nil if the item does not
// exist or has been deleted; neither returns an error: an error from the underlying store is
// reported as nil.
type DataProvider interface {
	GetFeatureFlag(key string) *ldmodel.FeatureFlag
	GetSegment(key string) *ldmodel.Segment
}

// Tristate is the result of checking a single user against a single big segment.
type Tristate int

// Possible outcomes of a big segment membership check.
const (
	Unknown Tristate = iota
	Included
	Excluded
)

// BigSegmentMembership answers membership queries for one user, one segment reference at a
// time. Included beats excluded if a caller composes multiple sources; a single Membership
// value already resolves that for one user across all their segment references.
type BigSegmentMembership interface {
	CheckMembership(segmentRef string) Tristate
}

// BigSegmentProvider is the evaluator's view of the big-segment wrapper (§4.6 of the core
// spec). It is optional; an evaluator constructed without one treats every segmentMatch clause
// against an unbounded segment as not matching, with reason BigSegmentsStatus=NotConfigured.
type BigSegmentProvider interface {
	GetUserMembership(userKey string) (BigSegmentMembership, ldreason.BigSegmentsStatus)
}

// PrerequisiteEvent describes one prerequisite flag evaluation performed while evaluating a
// dependent flag. The caller (the client facade) turns each of these into a feature-request
// event before emitting the terminal event for the flag being evaluated.
type PrerequisiteEvent struct {
	TargetFlagKey    string
	User             ldmodel.User
	PrerequisiteFlag ldmodel.FeatureFlag
	Result           ldreason.EvaluationDetail
}
