package ldmodel

import (
	"regexp"
	"time"

	"github.com/blang/semver"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// ParseDateTime interprets a clause value as a timestamp, per the before/after operators: a
// string is parsed as RFC3339, a number is interpreted as unix milliseconds. Any other shape
// fails.
func ParseDateTime(value ldvalue.Value) (time.Time, bool) {
	switch value.Type() {
	case ldvalue.StringType:
		t, err := time.Parse(time.RFC3339Nano, value.StringValue())
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case ldvalue.NumberType:
		ms := value.Float64Value()
		return time.UnixMilli(int64(ms)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// versionNumericComponentsRegex matches the leading numeric dotted components of a version
// string, capturing up to three of them; used to pad a version string that is missing its
// minor and/or patch component before attempting to parse it as semver.
var versionNumericComponentsRegex = regexp.MustCompile(`^\d+(\.\d+)?(\.\d+)?`)

// ParseSemVer parses a clause value as a semantic version, tolerating a version string that is
// missing its minor and/or patch component (e.g. "2" or "2.0") by padding it with zeroes before
// retrying the parse.
func ParseSemVer(value ldvalue.Value) (semver.Version, bool) {
	if value.Type() != ldvalue.StringType {
		return semver.Version{}, false
	}
	s := value.StringValue()
	if v, err := semver.Parse(s); err == nil {
		return v, true
	}
	fixed := addZeroVersionComponents(s)
	if fixed == "" {
		return semver.Version{}, false
	}
	v, err := semver.Parse(fixed)
	if err != nil {
		return semver.Version{}, false
	}
	return v, true
}

func addZeroVersionComponents(s string) string {
	m := versionNumericComponentsRegex.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	full := m[0]
	rest := s[len(full):]
	numDots := 0
	for _, c := range full {
		if c == '.' {
			numDots++
		}
	}
	for i := numDots; i < 2; i++ {
		full += ".0"
	}
	return full + rest
}
