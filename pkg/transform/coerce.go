package transform

import (
	"encoding/json"
	"strings"
)

// cleanString trims a legacy string field, mapping empty and whitespace-only
// values to nil.
func cleanString(val *string) *string {
	if val == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// stringOrEmpty dereferences through cleanString.
func stringOrEmpty(val *string) string {
	if c := cleanString(val); c != nil {
		return *c
	}
	return ""
}

// looseJSON decodes a legacy JSON blob into v. Legacy rows frequently store
// Python-repr pseudo-JSON with single quotes; a failed strict parse retries
// with quotes swapped, the same recovery the source system applied. Returns
// false when neither form parses.
func looseJSON(raw json.RawMessage, v any) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return false
	}
	if err := json.Unmarshal(raw, v); err == nil {
		return true
	}
	swapped := strings.ReplaceAll(string(raw), "'", `"`)
	return json.Unmarshal([]byte(swapped), v) == nil
}

// looseJSONValue decodes a legacy blob into a generic value, or returns nil.
func looseJSONValue(raw json.RawMessage) any {
	var v any
	if !looseJSON(raw, &v) {
		return nil
	}
	return v
}

// intFromFloat coerces the legacy numeric-as-float columns, nil as zero.
func intFromFloat(val *float64) int64 {
	if val == nil {
		return 0
	}
	return int64(*val)
}

// mustJSON marshals a value that is known to be marshalable (built from
// plain maps and decoded JSON). A marshal failure here is a programming
// error, so it degrades to an empty object rather than panicking.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// truncate bounds a display string to max runes.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
