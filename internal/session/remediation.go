package session

import (
	"github.com/p-n-ai/pai-comply/internal/content"
	"github.com/p-n-ai/pai-comply/internal/quiz"
)

// RewindLead is how many seconds before the earliest unresolved cue playback
// restarts.
const RewindLead = 5

// remediate decides whether the active lesson is complete. Below the pass
// threshold it re-arms unresolved cues and either rewinds to the earliest
// timed one or reopens the first untimed one. Resuming playback after a
// rewind is left to the caller.
func (s *Session) remediate(step *Step) {
	a := s.active
	if len(a.cues) == 0 {
		return
	}

	passed := 0
	for _, c := range a.cues {
		if s.isPassed(c) {
			passed++
		}
	}
	total := len(a.cues)

	if passed*100 >= quiz.PassThreshold*total {
		s.markWatched(step)
		// stop auto-firing retries for a lesson that is done
		for _, c := range a.cues {
			if c.Timed() {
				s.sched.MarkShown(a.lesson.ID, c.ID)
			}
		}
		s.emit(EventRemediation, a.lesson.ID, map[string]any{
			"outcome": "complete",
			"passed":  passed,
			"total":   total,
		})
		return
	}

	unresolved := s.unresolved(a)
	if len(unresolved) == 0 {
		s.emit(EventRemediation, a.lesson.ID, map[string]any{
			"outcome": "exhausted",
			"passed":  passed,
			"total":   total,
		})
		return
	}

	ids := make([]string, len(unresolved))
	for i, c := range unresolved {
		ids[i] = c.ID
	}
	s.sched.Rearm(a.lesson.ID, ids...)

	// cues are sorted by trigger, so the first timed one is the earliest
	var earliest *content.Cue
	var firstUntimed *content.Cue
	for i := range unresolved {
		c := &unresolved[i]
		if c.Timed() && earliest == nil {
			earliest = c
		}
		if !c.Timed() && firstUntimed == nil {
			firstUntimed = c
		}
	}

	data := map[string]any{
		"passed":     passed,
		"total":      total,
		"unresolved": ids,
	}
	if earliest != nil {
		target := float64(max(0, *earliest.TriggerAt-RewindLead))
		step.Position = a.guard.Reposition(target)
		step.Rewound = true
		data["outcome"] = "rewind"
		data["position"] = step.Position
	} else {
		s.surface(step, *firstUntimed)
		data["outcome"] = "reopen"
		data["cue_id"] = firstUntimed.ID
	}
	s.emit(EventRemediation, a.lesson.ID, data)
}

// unresolved returns the cues of a lesson that still need an attempt: failed
// ones and never attempted ones that are not passed. Cues out of attempts are
// left out.
func (s *Session) unresolved(a *activeLesson) []content.Cue {
	var out []content.Cue
	for _, c := range a.cues {
		if s.isPassed(c) || s.exhausted(c) {
			continue
		}
		if s.failed.has(a.lesson.ID, c.ID) || !s.attempted.has(a.lesson.ID, c.ID) {
			out = append(out, c)
		}
	}
	return out
}
