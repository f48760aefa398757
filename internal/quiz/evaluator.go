// Package quiz grades learner answers against a cue's expected answers.
package quiz

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-comply/internal/content"
)

// PassThreshold is the minimum percentage for an attempt to pass.
const PassThreshold = 80

// Answers holds submitted values keyed by question index.
type Answers map[int]string

// QuestionResult is the per-question detail of an attempt.
type QuestionResult struct {
	Prompt   string `json:"prompt"`
	Selected string `json:"selected"`
	Expected string `json:"expected"`
	Correct  bool   `json:"correct"`
}

// AttemptReport is the outcome of one submitted attempt.
type AttemptReport struct {
	CueID       string           `json:"cueId"`
	LessonID    string           `json:"lessonId"`
	Score       int              `json:"score"`
	MaxScore    int              `json:"maxScore"`
	Percentage  float64          `json:"percentage"`
	Passed      bool             `json:"passed"`
	Details     []QuestionResult `json:"details"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// Grade scores answers against cue. Only questions with an expected answer
// count toward MaxScore; a cue without any can never pass.
func Grade(cue content.Cue, answers Answers, now time.Time) AttemptReport {
	report := AttemptReport{
		CueID:       cue.ID,
		LessonID:    cue.LessonID,
		Details:     make([]QuestionResult, 0, len(cue.Questions)),
		SubmittedAt: now,
	}

	for i, q := range cue.Questions {
		selected := answers[i]
		result := QuestionResult{
			Prompt:   q.Prompt,
			Selected: selected,
			Expected: q.Answer,
		}
		if q.Gradable() {
			report.MaxScore++
			if Normalize(selected) == Normalize(q.Answer) {
				result.Correct = true
				report.Score++
			}
		}
		report.Details = append(report.Details, result)
	}

	if report.MaxScore > 0 {
		report.Percentage = float64(report.Score) / float64(report.MaxScore) * 100
		report.Passed = report.Score*100 >= PassThreshold*report.MaxScore
	}
	return report
}

// Normalize prepares an answer for comparison: Unicode compatibility form,
// case folded, surrounding and repeated whitespace removed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
