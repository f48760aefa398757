package content

import (
	"sort"
	"strings"
)

// optionDelimiters are tried in priority order; the first one present wins.
var optionDelimiters = []string{";", "|", ",", "\n"}

var (
	optionKeys      = []string{"options", "choices", "alternatives", "answers", "answerOptions", "answer_options"}
	optionValueKeys = []string{"value", "id", "name", "option", "label"}
	optionLabelKeys = []string{"label", "text", "name", "option", "title", "value"}
)

// ParseOptions flattens any supported option encoding into a uniform list.
// Unparseable input yields an empty list.
func ParseOptions(v any) []Option {
	v = unwrap(v)
	switch t := v.(type) {
	case nil:
		return []Option{}
	case string:
		return splitOptions(t)
	}
	if items, ok := asSlice(v); ok {
		out := make([]Option, 0, len(items))
		for _, item := range items {
			if opt, ok := optionFromItem(item); ok {
				out = append(out, opt)
			}
		}
		return out
	}
	if m, ok := asMap(v); ok {
		return optionsFromObject(m)
	}
	if s, ok := scalarString(v); ok && s != "" {
		return []Option{{Label: s, Value: s}}
	}
	return []Option{}
}

func splitOptions(s string) []Option {
	s = strings.TrimSpace(s)
	if s == "" {
		return []Option{}
	}
	parts := []string{s}
	for _, d := range optionDelimiters {
		if strings.Contains(s, d) {
			parts = strings.Split(s, d)
			break
		}
	}
	out := make([]Option, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Option{Label: p, Value: p})
	}
	return out
}

func optionFromItem(item any) (Option, bool) {
	if m, ok := asMap(item); ok {
		value := stringField(m, optionValueKeys...)
		if value == "" {
			value = stringify(m)
		}
		label := stringField(m, optionLabelKeys...)
		if label == "" {
			label = value
		}
		return Option{Label: label, Value: value}, true
	}
	if s, ok := scalarString(item); ok && s != "" {
		return Option{Label: s, Value: s}, true
	}
	return Option{}, false
}

// optionsFromObject handles {"a": "Yes", "b": "No"} style option maps, keyed
// by the value submitted for each label. Keys are sorted for a stable order.
// An object that itself looks like one option is treated as a single option.
func optionsFromObject(m map[string]any) []Option {
	if _, ok := lookup(m, optionValueKeys...); ok {
		if opt, ok := optionFromItem(m); ok {
			return []Option{opt}
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Option, 0, len(keys))
	for _, k := range keys {
		label := stringify(m[k])
		if label == "" {
			label = k
		}
		out = append(out, Option{Label: label, Value: k})
	}
	return out
}
