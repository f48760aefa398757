package progress_test

import (
	"testing"

	"github.com/p-n-ai/pai-comply/internal/progress"
	"github.com/p-n-ai/pai-comply/internal/quiz"
)

func nineItemOutline() progress.Outline {
	return progress.Outline{
		LessonIDs: []string{"l1", "l2", "l3"},
		CueKeys:   []string{"l1/c1", "l1/c2", "l2/c1", "l3/c1", "l3/c2"},
	}
}

func TestCompletion_Scenario(t *testing.T) {
	s := progress.NewSnapshot()
	s.Watched[progress.IntroKey] = true
	s.Watched["l1"] = true
	s.Watched["l2"] = true
	s.Passed["l1/c1"] = true
	s.Passed["l1/c2"] = true
	s.Passed["l3/c1"] = true

	if got := progress.Completion(nineItemOutline(), s); got != 67 {
		t.Errorf("Completion() = %d, want 67", got)
	}
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		name string
		mut  func(s *progress.Snapshot)
		want int
	}{
		{"empty", func(s *progress.Snapshot) {}, 0},
		{"intro only", func(s *progress.Snapshot) { s.Watched[progress.IntroKey] = true }, 11},
		{"failed cues do not count", func(s *progress.Snapshot) { s.Passed["l1/c1"] = false }, 0},
		{"unknown ids ignored", func(s *progress.Snapshot) {
			s.Watched["gone"] = true
			s.Passed["gone/c9"] = true
		}, 0},
		{"everything", func(s *progress.Snapshot) {
			s.Watched[progress.IntroKey] = true
			for _, id := range []string{"l1", "l2", "l3"} {
				s.Watched[id] = true
			}
			for _, k := range nineItemOutline().CueKeys {
				s.Passed[k] = true
			}
		}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := progress.NewSnapshot()
			tt.mut(&s)
			if got := progress.Completion(nineItemOutline(), s); got != tt.want {
				t.Errorf("Completion() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompletion_EmptyCourse(t *testing.T) {
	s := progress.NewSnapshot()
	if got := progress.Completion(progress.Outline{}, s); got != 0 {
		t.Errorf("Completion() = %d, want 0", got)
	}
	s.Watched[progress.IntroKey] = true
	if got := progress.Completion(progress.Outline{}, s); got != 100 {
		t.Errorf("Completion() = %d, want 100", got)
	}
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := progress.NewSnapshot()
	s.Watched["l1"] = true
	s.Reports["l1/c1"] = quiz.AttemptReport{CueID: "c1", Details: []quiz.QuestionResult{{Prompt: "p"}}}

	c := s.Clone()
	c.Watched["l2"] = true
	c.Reports["l1/c1"].Details[0].Prompt = "changed"

	if s.Watched["l2"] {
		t.Error("clone shares Watched map")
	}
	if s.Reports["l1/c1"].Details[0].Prompt != "p" {
		t.Error("clone shares report details")
	}
}
