package content

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationToken = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours|hour|hrs|hr|h|minutes|minute|mins|min|m|seconds|second|secs|sec|s)`)
	tokenGap      = regexp.MustCompile(`^[\s,]*(?:and)?[\s,]*$`)
)

// timeKeys are checked in order when reading a cue's trigger time.
var timeKeys = []string{
	"appearAt", "appear_at", "triggerAt", "trigger_at", "time", "timestamp",
	"timeSeconds", "time_seconds", "showAt", "show_at", "startTime", "start_time",
	"at", "seconds", "second",
}

// ParseTrigger converts a trigger-time fragment into whole seconds. It accepts
// numbers, numeric strings, MM:SS, HH:MM:SS, unit-suffixed values ("5m",
// "30s") and free text ("1h 5m 30s"). Anything else yields nil.
func ParseTrigger(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return parseTriggerString(t)
	}
	s, ok := scalarString(v)
	if !ok {
		return nil
	}
	if _, isBool := v.(bool); isBool {
		return nil
	}
	return parseTriggerString(s)
}

func parseTriggerString(raw string) *int {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return seconds(f)
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	return parseUnits(s)
}

func parseClock(s string) *int {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}
	total := 0.0
	for i, p := range parts {
		p = strings.TrimSpace(p)
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 {
			return nil
		}
		// only the last component may be fractional or exceed 59
		if i > 0 && i < len(parts)-1 && f >= 60 {
			return nil
		}
		total = total*60 + f
	}
	return seconds(total)
}

func parseUnits(s string) *int {
	matches := durationToken.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return nil
	}
	total := 0.0
	prev := 0
	for _, m := range matches {
		if !tokenGap.MatchString(s[prev:m[0]]) {
			return nil
		}
		n, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return nil
		}
		switch unit := s[m[4]:m[5]]; unit[0] {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		default:
			total += n
		}
		prev = m[1]
	}
	if !tokenGap.MatchString(s[prev:]) {
		return nil
	}
	return seconds(total)
}

func seconds(f float64) *int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func triggerOf(item map[string]any) *int {
	for _, k := range timeKeys {
		if v, ok := item[k]; ok && v != nil {
			if t := ParseTrigger(v); t != nil {
				return t
			}
		}
	}
	return nil
}
