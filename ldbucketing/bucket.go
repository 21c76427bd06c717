// Package ldbucketing computes the deterministic pseudo-random bucket value used for
// percentage rollouts and rollout-based segment rules.
package ldbucketing

import (
	"crypto/sha1" //nolint:gosec // not used for anything security-sensitive, only for stable hashing
	"encoding/hex"
	"strconv"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// longScale is 2^60 - 1; the first 15 hex characters of a SHA-1 digest represent a 60-bit
// integer, and dividing by this constant maps that integer into [0.0, 1.0).
const longScale = float32(0xFFFFFFFFFFFFFFF)

// Bucket computes a bucket value in [0.0, 1.0) for the given bucketable value, salted with
// contextKey and salt, and optionally mixed with a secondary key. It returns false as its
// second value if idValue cannot be turned into a bucketable string, in which case the bucket
// is defined to be 0.0 and any clause relying on it does not match.
func Bucket(idValue ldvalue.Value, contextKey string, salt string, secondary string) (float32, bool) {
	idHash, ok := bucketableStringValue(idValue)
	if !ok {
		return 0, false
	}
	if secondary != "" {
		idHash = idHash + "." + secondary
	}

	h := sha1.New() //nolint:gosec
	_, _ = h.Write([]byte(contextKey + "." + salt + "." + idHash))
	hash := hex.EncodeToString(h.Sum(nil))[:15]

	longVal, err := strconv.ParseUint(hash, 16, 64)
	if err != nil {
		return 0, false
	}
	return float32(longVal) / longScale, true
}

// bucketableStringValue converts a user attribute value into the string form used for hashing.
// Strings pass through unchanged; integers are rendered as plain decimal digits; anything else
// (floats, bools, arrays, objects, null) is not bucketable.
func bucketableStringValue(value ldvalue.Value) (string, bool) {
	switch value.Type() {
	case ldvalue.StringType:
		return value.StringValue(), true
	case ldvalue.NumberType:
		if value.IsInt() {
			return strconv.Itoa(value.IntValue()), true
		}
		return "", false
	default:
		return "", false
	}
}
