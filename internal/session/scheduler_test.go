package session

import (
	"testing"

	"github.com/p-n-ai/pai-comply/internal/content"
)

func at(n int) *int { return &n }

func TestScheduler_Next(t *testing.T) {
	cues := []content.Cue{
		{ID: "a", TriggerAt: at(10)},
		{ID: "b", TriggerAt: at(10)},
		{ID: "c", TriggerAt: at(30)},
		{ID: "u"},
	}
	passed := map[string]bool{}
	isPassed := func(c content.Cue) bool { return passed[c.ID] }

	s := newScheduler()

	tests := []struct {
		name  string
		pos   float64
		setup func()
		want  string
	}{
		{"nothing due", 9.9, func() {}, ""},
		{"first due", 10, func() {}, "a"},
		{"same trigger in order", 12, func() { s.MarkShown("l", "a") }, "b"},
		{"passed is skipped", 31, func() { s.MarkShown("l", "b"); passed["c"] = true }, ""},
		{"rearmed fires again", 31, func() { s.Rearm("l", "a") }, "a"},
		{"untimed never fires", 1e9, func() { s.MarkShown("l", "a") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			got, ok := s.Next("l", cues, tt.pos, isPassed)
			if tt.want == "" {
				if ok {
					t.Errorf("Next(%v) = %s, want none", tt.pos, got.ID)
				}
				return
			}
			if !ok || got.ID != tt.want {
				t.Errorf("Next(%v) = %q (%v), want %q", tt.pos, got.ID, ok, tt.want)
			}
		})
	}
}

func TestScheduler_ShownIsPerLesson(t *testing.T) {
	s := newScheduler()
	s.MarkShown("l1", "q")
	if !s.Shown("l1", "q") {
		t.Error("Shown(l1, q) = false")
	}
	if s.Shown("l2", "q") {
		t.Error("cue ids must be scoped per lesson")
	}
	s.Rearm("l1", "q", "missing")
	if s.Shown("l1", "q") {
		t.Error("Rearm() did not clear q")
	}
}
