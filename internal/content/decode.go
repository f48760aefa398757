package content

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxStringDecodes bounds how many layers of JSON-in-a-string are unwrapped.
const maxStringDecodes = 3

// decodeJSONString unwraps a string holding JSON, following nested string
// encodings. It reports false when s is not JSON.
func decodeJSONString(s string) (any, bool) {
	var cur any = s
	decoded := false
	for i := 0; i < maxStringDecodes; i++ {
		str, ok := cur.(string)
		if !ok {
			break
		}
		str = strings.TrimSpace(str)
		if str == "" || !looksLikeJSON(str) {
			break
		}
		var v any
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			break
		}
		cur = v
		decoded = true
	}
	return cur, decoded
}

func looksLikeJSON(s string) bool {
	switch s[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

// unwrap turns byte and string payloads into decoded values; other values are
// returned as is.
func unwrap(v any) any {
	switch t := v.(type) {
	case json.RawMessage:
		return unwrap(string(t))
	case []byte:
		return unwrap(string(t))
	case string:
		if d, ok := decodeJSONString(t); ok {
			return d
		}
	}
	return v
}

// asMap accepts the map shapes produced by encoding/json and yaml.v3.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// lookup returns the first non-nil value stored under one of keys.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// scalarString renders strings, numbers and booleans. Other values report false.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// stringField returns the first key holding a non-empty scalar.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, ok := scalarString(v); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// stringify renders any value; objects fall back to compact JSON.
func stringify(v any) string {
	if s, ok := scalarString(v); ok {
		return s
	}
	if m, ok := asMap(v); ok {
		v = m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
