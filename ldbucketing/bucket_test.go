package ldbucketing

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
)

func TestBucketReferenceVector(t *testing.T) {
	bucket, ok := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", "")
	assert.True(t, ok)
	assert.InDelta(t, 0.42157587, bucket, 0.0000001)
}

func TestBucketIsDeterministic(t *testing.T) {
	b1, ok1 := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", "")
	b2, ok2 := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", "")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, b1, b2)
}

func TestBucketBySecondaryKeyChangesResult(t *testing.T) {
	without, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", "")
	with, _ := Bucket(ldvalue.String("userKeyA"), "hashKey", "saltyA", "other-secondary")
	assert.NotEqual(t, without, with)
}

func TestBucketByIntegerAttribute(t *testing.T) {
	bucket, ok := Bucket(ldvalue.Int(33), "hashKey", "saltyA", "")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, bucket, float32(0))
	assert.Less(t, bucket, float32(1))
}

func TestBucketByFloatAttributeIsUnbucketable(t *testing.T) {
	_, ok := Bucket(ldvalue.Float64(33.5), "hashKey", "saltyA", "")
	assert.False(t, ok)
}

func TestBucketByBoolAttributeIsUnbucketable(t *testing.T) {
	_, ok := Bucket(ldvalue.Bool(true), "hashKey", "saltyA", "")
	assert.False(t, ok)
}
