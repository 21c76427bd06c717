package datastore

import (
	"testing"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/stretchr/testify/assert"
)

func flagItem(key string, prereqs ...string) ItemDescriptor {
	flag := &ldmodel.FeatureFlag{Key: key}
	for _, p := range prereqs {
		flag.Prerequisites = append(flag.Prerequisites, ldmodel.Prerequisite{Key: p})
	}
	return ItemDescriptor{Version: 1, Item: flag}
}

func indexOf(ordered []KeyedItemDescriptor, key string) int {
	for i, ki := range ordered {
		if ki.Key == key {
			return i
		}
	}
	return -1
}

func TestSortForInitPutsPrerequisitesBeforeDependents(t *testing.T) {
	features := map[string]ItemDescriptor{
		"a": flagItem("a", "b", "c"),
		"b": flagItem("b", "c", "e"),
		"c": flagItem("c"),
		"d": flagItem("d"),
		"e": flagItem("e"),
		"f": flagItem("f"),
	}
	collections := SortForInit(features, map[string]ItemDescriptor{"s": {Version: 1, Item: &ldmodel.Segment{Key: "s"}}})

	assert.Equal(t, Segments, collections[0].Kind)
	assert.Equal(t, Features, collections[1].Kind)

	ordered := collections[1].Items
	assert.Less(t, indexOf(ordered, "c"), indexOf(ordered, "a"))
	assert.Less(t, indexOf(ordered, "b"), indexOf(ordered, "a"))
	assert.Less(t, indexOf(ordered, "c"), indexOf(ordered, "b"))
	assert.Less(t, indexOf(ordered, "e"), indexOf(ordered, "b"))
	assert.Len(t, ordered, 6)
}

func TestSortForInitToleratesCycles(t *testing.T) {
	features := map[string]ItemDescriptor{
		"x": flagItem("x", "y"),
		"y": flagItem("y", "x"),
	}
	collections := SortForInit(features, nil)
	assert.Len(t, collections[1].Items, 2)
}
