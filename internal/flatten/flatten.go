// Package flatten collapses nested parser output into single-level records
// whose keys are underscore-joined paths, the shape both ingestion backends
// index best.
package flatten

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Map flattens a nested map one level deep. Nested maps contribute
// underscore-joined keys, lists are kept as JSON-encoded strings, and the
// "#attributes" segment emitted by XML-derived JSON is normalized to
// "attributes".
func Map(nested map[string]any) map[string]any {
	flat := make(map[string]any, len(nested))
	walk("", nested, flat)
	return flat
}

func walk(prefix string, value any, flat map[string]any) {
	m, ok := value.(map[string]any)
	if !ok {
		if l, isList := value.([]any); isList {
			if data, err := json.Marshal(l); err == nil {
				flat[prefix] = string(data)
			}
			return
		}
		flat[prefix] = value
		return
	}
	for k, v := range m {
		key := cleanSegment(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		if v == nil {
			continue
		}
		walk(key, v, flat)
	}
}

func cleanSegment(s string) string {
	if s == "#attributes" {
		return "attributes"
	}
	return strings.TrimPrefix(s, "#")
}

// FromJSON decodes one JSON object and flattens it.
func FromJSON(data []byte) (map[string]any, error) {
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return Map(nested), nil
}
