package session

import "github.com/p-n-ai/pai-comply/internal/content"

// cueSet holds cue ids per lesson.
type cueSet map[string]map[string]bool

func (s cueSet) add(lessonID, cueID string) {
	if s[lessonID] == nil {
		s[lessonID] = make(map[string]bool)
	}
	s[lessonID][cueID] = true
}

func (s cueSet) remove(lessonID string, cueIDs ...string) {
	for _, id := range cueIDs {
		delete(s[lessonID], id)
	}
}

func (s cueSet) has(lessonID, cueID string) bool {
	return s[lessonID][cueID]
}

// scheduler decides which timed cue fires next. A cue fires once until it is
// re-armed.
type scheduler struct {
	shown cueSet
}

func newScheduler() *scheduler {
	return &scheduler{shown: make(cueSet)}
}

// Next returns the first cue, in trigger order, that is due at pos and has
// been neither shown nor passed. Untimed cues never fire on their own.
func (s *scheduler) Next(lessonID string, cues []content.Cue, pos float64, passed func(content.Cue) bool) (content.Cue, bool) {
	for _, c := range cues {
		if !c.Timed() {
			continue
		}
		if float64(*c.TriggerAt) > pos {
			// sorted ascending, nothing later is due either
			break
		}
		if s.shown.has(lessonID, c.ID) || passed(c) {
			continue
		}
		return c, true
	}
	return content.Cue{}, false
}

// MarkShown records that a cue has been surfaced.
func (s *scheduler) MarkShown(lessonID, cueID string) {
	s.shown.add(lessonID, cueID)
}

// Rearm makes cues eligible to fire again.
func (s *scheduler) Rearm(lessonID string, cueIDs ...string) {
	s.shown.remove(lessonID, cueIDs...)
}

// Shown reports whether a cue is currently marked as surfaced.
func (s *scheduler) Shown(lessonID, cueID string) bool {
	return s.shown.has(lessonID, cueID)
}
