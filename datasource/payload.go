package datasource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/launchdarkly/go-server-sdk-core/datastore"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
)

// putPayload is the wire shape of a streaming "put" event or a polling full snapshot: the
// complete set of flags and segments, keyed by their own key.
type putPayload struct {
	Data struct {
		Flags    map[string]*ldmodel.FeatureFlag `json:"flags"`
		Segments map[string]*ldmodel.Segment     `json:"segments"`
	} `json:"data"`
}

// patchPayload is the wire shape of a streaming "patch" event: a single item at a path of the
// form "/flags/KEY" or "/segments/KEY".
type patchPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// deletePayload is the wire shape of a streaming "delete" event: a tombstone at a stated
// version.
type deletePayload struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

func parsePut(raw []byte) ([]datastore.Collection, error) {
	var payload putPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed put payload: %w", err)
	}
	features := make(map[string]datastore.ItemDescriptor, len(payload.Data.Flags))
	for key, flag := range payload.Data.Flags {
		features[key] = datastore.ItemDescriptor{Version: flag.Version, Item: flag}
	}
	segments := make(map[string]datastore.ItemDescriptor, len(payload.Data.Segments))
	for key, segment := range payload.Data.Segments {
		segments[key] = datastore.ItemDescriptor{Version: segment.Version, Item: segment}
	}
	return datastore.SortForInit(features, segments), nil
}

// parsePath splits a patch/delete path of the form "/flags/KEY" or "/segments/KEY" into a
// data kind and a key.
func parsePath(path string) (datastore.DataKind, string, bool) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	switch parts[0] {
	case "flags":
		return datastore.Features, parts[1], true
	case "segments":
		return datastore.Segments, parts[1], true
	default:
		return 0, "", false
	}
}

func parsePatch(raw []byte) (datastore.DataKind, string, datastore.ItemDescriptor, error) {
	var payload patchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, "", datastore.ItemDescriptor{}, fmt.Errorf("malformed patch payload: %w", err)
	}
	kind, key, ok := parsePath(payload.Path)
	if !ok {
		return 0, "", datastore.ItemDescriptor{}, fmt.Errorf("malformed patch path: %q", payload.Path)
	}
	if kind == datastore.Features {
		var flag ldmodel.FeatureFlag
		if err := json.Unmarshal(payload.Data, &flag); err != nil {
			return 0, "", datastore.ItemDescriptor{}, fmt.Errorf("malformed flag in patch: %w", err)
		}
		return kind, key, datastore.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
	}
	var segment ldmodel.Segment
	if err := json.Unmarshal(payload.Data, &segment); err != nil {
		return 0, "", datastore.ItemDescriptor{}, fmt.Errorf("malformed segment in patch: %w", err)
	}
	return kind, key, datastore.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
}

func parseDelete(raw []byte) (datastore.DataKind, string, datastore.ItemDescriptor, error) {
	var payload deletePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, "", datastore.ItemDescriptor{}, fmt.Errorf("malformed delete payload: %w", err)
	}
	kind, key, ok := parsePath(payload.Path)
	if !ok {
		return 0, "", datastore.ItemDescriptor{}, fmt.Errorf("malformed delete path: %q", payload.Path)
	}
	return kind, key, datastore.ItemDescriptor{Version: payload.Version, Item: nil}, nil
}
