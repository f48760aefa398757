package content

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const (
	maxWrapperDepth = 6
	maxScanDepth    = 6
)

var (
	listKeys = []string{
		"quizzes", "quiz", "questions", "cues", "quizCues", "quiz_cues",
		"videoQuizzes", "video_quizzes", "interactiveQuestions", "interactive_questions",
		"checkpoints", "items",
	}
	wrapperKeys  = []string{"content", "payload", "data"}
	idKeys       = []string{"id", "cueId", "cue_id", "quizId", "quiz_id", "_id", "key"}
	promptKeys   = []string{"question", "prompt", "text", "title", "q", "label"}
	answerKeys   = []string{"answer", "correctAnswer", "correct_answer", "correct", "solution", "correctOption", "correct_option"}
	indexKeys    = []string{"correctIndex", "correct_index", "answerIndex", "answer_index"}
	correctFlags = []string{"correct", "isCorrect", "is_correct"}
	quizItemKeys = []string{
		"question", "prompt", "options", "choices", "answer", "correctAnswer",
		"correct_answer", "questions",
	}
)

// strategy extracts a list of raw cue items from a payload, reporting false
// when the payload does not have the shape it understands.
type strategy func(payload any, depth int) ([]any, bool)

// shapeStrategies recognize known encodings. The structural scan runs only
// when all of them fail at the top level.
var shapeStrategies []strategy

func init() {
	shapeStrategies = []strategy{directList, keyedList, singleCue, wrapped}
}

// Normalize converts a lesson's raw payload into its cues, sorted by trigger
// time with untimed cues last in source order.
func Normalize(lessonID string, raw any) []Cue {
	items, ok := extractKnown(raw, 0)
	if !ok {
		items, _ = structuralScan(unwrap(raw), 0)
	}

	cues := make([]Cue, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		cues = append(cues, buildCue(lessonID, len(cues), m))
	}

	dedupeIDs(lessonID, cues)

	sort.SliceStable(cues, func(i, j int) bool {
		a, b := cues[i].TriggerAt, cues[j].TriggerAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return cues
}

func extractKnown(payload any, depth int) ([]any, bool) {
	if depth > maxWrapperDepth {
		return nil, false
	}
	payload = unwrap(payload)
	for _, s := range shapeStrategies {
		if items, ok := s(payload, depth); ok {
			return items, true
		}
	}
	return nil, false
}

// directList accepts a payload that is itself a list of quiz items.
func directList(payload any, _ int) ([]any, bool) {
	items, ok := asSlice(payload)
	if !ok || !isQuizList(items) {
		return nil, false
	}
	return items, true
}

// singleCue accepts a payload that is one quiz object.
func singleCue(payload any, _ int) ([]any, bool) {
	m, ok := asMap(payload)
	if !ok {
		return nil, false
	}
	if _, ok := lookup(m, "question", "prompt"); !ok {
		return nil, false
	}
	return []any{m}, true
}

// keyedList looks for the cue list under one of the known property names.
func keyedList(payload any, _ int) ([]any, bool) {
	m, ok := asMap(payload)
	if !ok {
		return nil, false
	}
	for _, k := range listKeys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		// {"time": 30, "questions": [...]} is one multi-question cue.
		if k == "questions" && triggerOf(m) != nil {
			return []any{m}, true
		}
		if items, ok := listFromValue(v); ok {
			return items, true
		}
	}
	return nil, false
}

// wrapped descends into content/payload/data wrappers.
func wrapped(payload any, depth int) ([]any, bool) {
	m, ok := asMap(payload)
	if !ok {
		return nil, false
	}
	for _, k := range wrapperKeys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if items, ok := extractKnown(v, depth+1); ok {
			return items, true
		}
	}
	return nil, false
}

// listFromValue reads a value found under a list key. Only quiz-like items
// are kept; a list with none of them is not a cue list, so the search goes on.
func listFromValue(v any) ([]any, bool) {
	v = unwrap(v)
	if items, ok := asSlice(v); ok {
		quizzes := make([]any, 0, len(items))
		for _, item := range items {
			if m, ok := asMap(item); ok && isQuizItem(m) {
				quizzes = append(quizzes, item)
			}
		}
		if len(quizzes) == 0 {
			return nil, false
		}
		return quizzes, true
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	if isQuizItem(m) {
		return []any{m}, true
	}
	// id -> quiz object map
	keys := make([]string, 0, len(m))
	for k, val := range m {
		inner, ok := asMap(unwrap(val))
		if !ok || !isQuizItem(inner) {
			return nil, false
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		inner, _ := asMap(unwrap(m[k]))
		if _, has := lookup(inner, idKeys...); !has {
			cp := make(map[string]any, len(inner)+1)
			for ik, iv := range inner {
				cp[ik] = iv
			}
			cp["id"] = k
			inner = cp
		}
		out = append(out, inner)
	}
	return out, true
}

// structuralScan walks the payload depth first and returns the first array
// whose elements all look like quiz items. Map keys are visited in sorted
// order so the result is deterministic.
func structuralScan(payload any, _ int) ([]any, bool) {
	visited := make(map[uintptr]bool)
	var walk func(v any, depth int) ([]any, bool)
	walk = func(v any, depth int) ([]any, bool) {
		if depth > maxScanDepth || v == nil {
			return nil, false
		}
		if s, ok := v.(string); ok {
			decoded, ok := decodeJSONString(s)
			if !ok {
				return nil, false
			}
			return walk(decoded, depth+1)
		}
		if ptr, ok := identity(v); ok {
			if visited[ptr] {
				return nil, false
			}
			visited[ptr] = true
		}
		if items, ok := asSlice(v); ok {
			if isQuizList(items) {
				return items, true
			}
			for _, item := range items {
				if found, ok := walk(item, depth+1); ok {
					return found, true
				}
			}
			return nil, false
		}
		m, ok := asMap(v)
		if !ok {
			return nil, false
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found, ok := walk(m[k], depth+1); ok {
				return found, true
			}
		}
		return nil, false
	}
	return walk(payload, 0)
}

// identity returns the backing pointer of maps and slices for cycle detection.
func identity(v any) (uintptr, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.Len() == 0 {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

func isQuizList(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		m, ok := asMap(item)
		if !ok || !isQuizItem(m) {
			return false
		}
	}
	return true
}

func isQuizItem(m map[string]any) bool {
	if _, ok := lookup(m, quizItemKeys...); ok {
		return true
	}
	_, ok := lookup(m, timeKeys...)
	return ok
}

func buildCue(lessonID string, index int, m map[string]any) Cue {
	cue := Cue{
		ID:        stringField(m, idKeys...),
		LessonID:  lessonID,
		TriggerAt: triggerOf(m),
	}
	if cue.ID == "" {
		cue.ID = fmt.Sprintf("%s-cue-%d", lessonID, index+1)
	}

	if v, ok := m["questions"]; ok {
		if items, ok := asSlice(unwrap(v)); ok {
			for _, item := range items {
				if qm, ok := asMap(unwrap(item)); ok {
					cue.Questions = append(cue.Questions, buildQuestion(qm))
				}
			}
		}
	}
	if len(cue.Questions) == 0 {
		cue.Questions = []Question{buildQuestion(m)}
	}
	return cue
}

func buildQuestion(m map[string]any) Question {
	// {"question": {"text": ..., "options": ...}} nests the question body.
	if inner, ok := asMap(unwrap(m["question"])); ok {
		merged := make(map[string]any, len(m)+len(inner))
		for k, v := range m {
			merged[k] = v
		}
		delete(merged, "question")
		for k, v := range inner {
			merged[k] = v
		}
		m = merged
	}

	q := Question{Prompt: stringField(m, promptKeys...)}

	q.Options = []Option{}
	var rawOptions []any
	for _, k := range optionKeys {
		if v, ok := m[k]; ok && v != nil {
			q.Options = ParseOptions(v)
			if items, ok := asSlice(unwrap(v)); ok {
				rawOptions = items
			}
			break
		}
	}

	q.Answer = resolveAnswer(m, q.Options, rawOptions)
	return q
}

// resolveAnswer finds the expected answer and maps it onto an option value
// where possible.
func resolveAnswer(m map[string]any, options []Option, rawOptions []any) string {
	for _, k := range indexKeys {
		if v, ok := m[k]; ok && v != nil {
			if i, ok := asIndex(v); ok && i >= 0 && i < len(options) {
				return options[i].Value
			}
		}
	}

	for _, k := range answerKeys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		v = unwrap(v)
		if items, ok := asSlice(v); ok {
			if len(items) == 0 {
				continue
			}
			v = items[0]
		}
		var s string
		if am, ok := asMap(v); ok {
			s = stringField(am, optionValueKeys...)
		} else if str, ok := scalarString(v); ok {
			s = str
		}
		if s == "" {
			continue
		}
		return matchOption(s, options)
	}

	// [{"text": "A", "correct": true}, ...]
	for i, item := range rawOptions {
		om, ok := asMap(item)
		if !ok || i >= len(options) {
			continue
		}
		for _, f := range correctFlags {
			if b, ok := om[f].(bool); ok && b {
				return options[i].Value
			}
		}
	}
	return ""
}

func matchOption(s string, options []Option) string {
	for _, o := range options {
		if o.Value == s {
			return o.Value
		}
	}
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o.Value), s) || strings.EqualFold(strings.TrimSpace(o.Label), s) {
			return o.Value
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(options) {
		return options[i].Value
	}
	if len(s) == 1 && len(options) > 0 {
		if c := strings.ToUpper(s)[0]; c >= 'A' && c <= 'Z' && int(c-'A') < len(options) {
			return options[c-'A'].Value
		}
	}
	return s
}

func asIndex(v any) (int, bool) {
	s, ok := scalarString(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
