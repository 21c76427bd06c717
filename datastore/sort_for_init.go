package datastore

// SortForInit orders an init payload the way the core spec requires: Segments before Features,
// and within Features, every prerequisite before the flags that depend on it.
//
// The ordering within Features is computed with Kahn's algorithm: count each flag's
// in-degree (number of prerequisites pointing at another flag present in this payload), queue
// every zero-in-degree flag, then repeatedly dequeue a flag and decrement the in-degree of
// anything that lists it as a prerequisite. A cyclic set of flags never reaches zero in-degree
// and is appended at the end in arbitrary order; those flags are still stored, but the
// evaluator's own per-evaluation cycle guard reports Error(MALFORMED_FLAG) for them.
func SortForInit(features map[string]ItemDescriptor, segments map[string]ItemDescriptor) []Collection {
	return []Collection{
		{Kind: Segments, Items: toKeyedItems(segments)},
		{Kind: Features, Items: sortFeaturesByPrerequisite(features)},
	}
}

func toKeyedItems(m map[string]ItemDescriptor) []KeyedItemDescriptor {
	out := make([]KeyedItemDescriptor, 0, len(m))
	for k, v := range m {
		out = append(out, KeyedItemDescriptor{Key: k, Item: v})
	}
	return out
}

func sortFeaturesByPrerequisite(features map[string]ItemDescriptor) []KeyedItemDescriptor {
	inDegree := make(map[string]int, len(features))
	dependents := make(map[string][]string, len(features))

	for key, item := range features {
		if _, ok := inDegree[key]; !ok {
			inDegree[key] = 0
		}
		flag := ToFlag(item)
		if flag == nil {
			continue
		}
		for _, p := range flag.Prerequisites {
			if _, ok := features[p.Key]; !ok {
				continue // prerequisite not present in this payload; nothing to order against
			}
			inDegree[key]++
			dependents[p.Key] = append(dependents[p.Key], key)
		}
	}

	queue := make([]string, 0, len(features))
	for key, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, key)
		}
	}

	visited := make(map[string]bool, len(features))
	ordered := make([]string, 0, len(features))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if visited[key] {
			continue
		}
		visited[key] = true
		ordered = append(ordered, key)
		for _, dependent := range dependents[key] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Anything left over is part of a prerequisite cycle; append it in arbitrary order so it
	// is still stored (per the core spec: cycles must not abort initialization).
	for key := range features {
		if !visited[key] {
			ordered = append(ordered, key)
		}
	}

	out := make([]KeyedItemDescriptor, len(ordered))
	for i, key := range ordered {
		out[i] = KeyedItemDescriptor{Key: key, Item: features[key]}
	}
	return out
}
