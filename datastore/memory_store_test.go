package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRefusesOlderVersion(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Upsert(Features, "flag1", ItemDescriptor{Version: 2, Item: "v2"})
	require.NoError(t, err)
	_, err = s.Upsert(Features, "flag1", ItemDescriptor{Version: 1, Item: "v1"})
	require.NoError(t, err)

	item, err := s.Get(Features, "flag1")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Version)
	assert.Equal(t, "v2", item.Item)
}

func TestDeleteIsUpsertOfTombstone(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Upsert(Features, "flag1", ItemDescriptor{Version: 1, Item: "v1"})
	require.NoError(t, err)
	_, err = s.Upsert(Features, "flag1", ItemDescriptor{Version: 2, Item: nil})
	require.NoError(t, err)

	item, err := s.Get(Features, "flag1")
	require.NoError(t, err)
	assert.True(t, item.IsDeleted())
	assert.Equal(t, 2, item.Version)
}

func TestInitializedFlag(t *testing.T) {
	s := NewMemoryStore()
	initialized, _ := s.Initialized()
	assert.False(t, initialized)
	_ = s.Init(nil)
	initialized, _ = s.Initialized()
	assert.True(t, initialized)
}

func TestUnknownKeyIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	item, err := s.Get(Features, "nope")
	require.NoError(t, err)
	assert.Equal(t, NotFound, item)
}
