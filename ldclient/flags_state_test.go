package ldclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
)

// TestAllFlagsStateShape matches end-to-end scenario 5: the top level carries flat key/value
// pairs plus "$valid" and "$flagsState", and WithReasons adds a "reason" entry per flag.
func TestAllFlagsStateShape(t *testing.T) {
	flag1 := boolFlag("key1", true, true, false)
	flag2 := boolFlag("key2", true, false, true)
	store := storeWithFlags(flag1, flag2)
	c, err := New(Config{DataStore: store, EventProcessor: &recordingEventProcessor{}})
	require.NoError(t, err)
	c.setInitialized(true)

	result := c.AllFlagsState(testUser("u1"))
	assert.True(t, result.GetByKey("$valid").BoolValue())
	assert.True(t, result.GetByKey("key1").BoolValue())
	assert.False(t, result.GetByKey("key2").BoolValue())

	state := result.GetByKey("$flagsState")
	key1State := state.GetByKey("key1")
	assert.Equal(t, 1, key1State.GetByKey("version").IntValue())
	assert.Equal(t, 0, key1State.GetByKey("variation").IntValue())
	assert.True(t, key1State.GetByKey("reason").IsNull(), "reason is omitted without WithReasons")
}

func TestAllFlagsStateWithReasonsAddsReason(t *testing.T) {
	store := storeWithFlags(boolFlag("key1", true, true, false))
	c, err := New(Config{DataStore: store, EventProcessor: &recordingEventProcessor{}})
	require.NoError(t, err)
	c.setInitialized(true)

	result := c.AllFlagsState(testUser("u1"), WithReasons)
	reason := result.GetByKey("$flagsState").GetByKey("key1").GetByKey("reason")
	assert.False(t, reason.IsNull())
}

func TestAllFlagsStateOfflineIsInvalid(t *testing.T) {
	c, err := New(Config{Offline: true, EventProcessor: &recordingEventProcessor{}})
	require.NoError(t, err)

	result := c.AllFlagsState(testUser("u1"))
	assert.False(t, result.GetByKey("$valid").BoolValue())
}

func TestAllFlagsStateClientSideOnlyFiltersFlags(t *testing.T) {
	clientSide := boolFlag("client-flag", true, true, false)
	clientSide.ClientSideAvailability.UsingEnvironmentID = true
	serverOnly := boolFlag("server-flag", true, true, false)

	store := storeWithFlags(clientSide, serverOnly)
	c, err := New(Config{DataStore: store, EventProcessor: &recordingEventProcessor{}})
	require.NoError(t, err)
	c.setInitialized(true)

	result := c.AllFlagsState(testUser("u1"), ClientSideOnly)
	assert.False(t, result.GetByKey("client-flag").IsNull())
	assert.True(t, result.GetByKey("server-flag").IsNull())
}

// TestAllFlagsStateSurvivesAMalformedFlag confirms one flag's evaluation error never aborts the
// rest of the batch: a flag whose fallthrough variation index is out of range resolves to a
// null (MALFORMED_FLAG) entry, and the flag after it still evaluates normally.
func TestAllFlagsStateSurvivesAMalformedFlag(t *testing.T) {
	malformed := &ldmodel.FeatureFlag{
		Key:     "malformed",
		Version: 1,
		On:      true,
		// No Variations and Fallthrough.Variation pointing out of range.
		Fallthrough: ldmodel.VariationOrRollout{Variation: ldvalue.NewOptionalInt(5)},
	} // Fallthrough resolves to variation index 5, but Variations is empty.
	fine := boolFlag("fine", true, true, false)
	store := storeWithFlags(malformed, fine)
	c, err := New(Config{DataStore: store, EventProcessor: &recordingEventProcessor{}})
	require.NoError(t, err)
	c.setInitialized(true)

	result := c.AllFlagsState(testUser("u1"))
	assert.True(t, result.GetByKey("$valid").BoolValue())
	assert.True(t, result.GetByKey("malformed").IsNull())
	assert.True(t, result.GetByKey("fine").BoolValue())
}
