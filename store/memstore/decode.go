package memstore

import "encoding/json"

// decodeForMatch turns a stored JSON document into a generic map so
// scim.Filter.Matches (which falls back to JSON-navigation for non-struct
// values) can evaluate it without memstore depending on concrete scim
// types.
func decodeForMatch(data json.RawMessage) any {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// natural extracts a top-level string field from a stored JSON document,
// used for natural-key uniqueness checks (userName, displayName).
func natural(data json.RawMessage, field string) string {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	v, ok := m[field]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
