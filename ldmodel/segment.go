package ldmodel

import "sync"

// Segment is a named group of users, referenced from clauses via the segmentMatch operator.
type Segment struct {
	Key       string        `json:"key"`
	Version   int           `json:"version"`
	Included  []string      `json:"included"`
	Excluded  []string      `json:"excluded"`
	Salt      string        `json:"salt"`
	Rules     []SegmentRule `json:"rules"`
	Deleted   bool          `json:"deleted"`

	// Unbounded marks a "big segment": one whose membership is too large to ship inline and
	// must instead be queried through the big-segment wrapper. Included/Excluded/Rules are
	// ignored for such a segment; membership is looked up by Key. Generation is decoded from
	// the flag data but the evaluator does not consult it.
	Unbounded  bool `json:"unbounded"`
	Generation int  `json:"generation"`

	setsOnce   sync.Once
	includeSet map[string]bool
	excludeSet map[string]bool
}

// IncludesOrExcludes reports whether userKey appears in the segment's include or exclude list.
// If it appears in both, include wins (this matches the reference SDK behavior, which checks
// include before exclude; see DESIGN.md for the reasoning).
//
// The include/exclude sets are built lazily, once, behind setsOnce: many goroutines can call
// this concurrently (a *Segment is the same shared pointer every store read returns), and
// building the maps under sync.Once rather than a bare nil-check keeps that safe without paying
// the map-allocation cost on every store write.
func (s *Segment) IncludesOrExcludes(userKey string) (included bool, found bool) {
	s.setsOnce.Do(func() {
		s.includeSet = toSet(s.Included)
		s.excludeSet = toSet(s.Excluded)
	})
	if s.includeSet[userKey] {
		return true, true
	}
	if s.excludeSet[userKey] {
		return false, true
	}
	return false, false
}

func toSet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// SegmentRule is one entry in a segment's ordered rule list.
type SegmentRule struct {
	Clauses  []Clause      `json:"clauses"`
	Weight   *int          `json:"weight"`
	BucketBy UserAttribute `json:"bucketBy"`
}
