package argument

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup reads a property path from model. Paths use '/' or '.' separators
// ("/customer/name", "customer.name", "items.0.sku"). Maps and slices are
// walked directly; raw JSON bytes, and any other value the walk reaches, are
// queried with gjson for the rest of the path.
func Lookup(model any, path string) (any, bool) {
	if model == nil {
		return nil, false
	}

	segments := splitPath(path)
	current := model
	for i, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return lookupJSON(node, segments[i:])
		}
	}

	if raw, ok := rawJSON(current); ok {
		var whole any
		if err := json.Unmarshal(raw, &whole); err != nil {
			return nil, false
		}
		return whole, true
	}
	return current, true
}

// lookupJSON resolves rest below node. Only node itself is encoded.
func lookupJSON(node any, rest []string) (any, bool) {
	if node == nil {
		return nil, false
	}
	raw, ok := rawJSON(node)
	if !ok {
		encoded, err := json.Marshal(node)
		if err != nil {
			return nil, false
		}
		raw = encoded
	}

	result := gjson.GetBytes(raw, strings.Join(rest, "."))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func rawJSON(v any) ([]byte, bool) {
	switch m := v.(type) {
	case []byte:
		return m, true
	case json.RawMessage:
		return m, true
	}
	return nil, false
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '.'
	})
}
