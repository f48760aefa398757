// Package progress aggregates watched lessons and passed cues into a single
// completion percentage and persists it to an external store.
package progress

import (
	"math"

	"github.com/p-n-ai/pai-comply/internal/quiz"
)

// IntroKey marks the course introduction in Snapshot.Watched.
const IntroKey = "course-intro"

// Snapshot is the learner's progress through one course. Passed and Reports
// are keyed by content.Cue.Key().
type Snapshot struct {
	Watched  map[string]bool
	Passed   map[string]bool
	Reports  map[string]quiz.AttemptReport
	Progress int
}

// Outline lists the items a course is measured against.
type Outline struct {
	LessonIDs []string
	CueKeys   []string
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Watched: make(map[string]bool),
		Passed:  make(map[string]bool),
		Reports: make(map[string]quiz.AttemptReport),
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Watched:  make(map[string]bool, len(s.Watched)),
		Passed:   make(map[string]bool, len(s.Passed)),
		Reports:  make(map[string]quiz.AttemptReport, len(s.Reports)),
		Progress: s.Progress,
	}
	for k, v := range s.Watched {
		out.Watched[k] = v
	}
	for k, v := range s.Passed {
		out.Passed[k] = v
	}
	for k, v := range s.Reports {
		v.Details = append([]quiz.QuestionResult(nil), v.Details...)
		out.Reports[k] = v
	}
	return out
}

// Completion returns the course completion percentage:
// (intro + watched lessons + passed cues) / (1 + lessons + cues), rounded.
// Entries for ids outside the outline are ignored.
func Completion(o Outline, s Snapshot) int {
	total := 1 + len(o.LessonIDs) + len(o.CueKeys)
	done := 0
	if s.Watched[IntroKey] {
		done++
	}
	for _, id := range o.LessonIDs {
		if s.Watched[id] {
			done++
		}
	}
	for _, key := range o.CueKeys {
		if s.Passed[key] {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
