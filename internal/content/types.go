// Package content normalizes raw lesson payloads into quiz cues.
//
// Lesson content reaches the engine in many shapes: plain arrays, nested
// objects, JSON strings (sometimes encoded twice) and legacy field names.
// Normalize never fails; fragments it cannot understand degrade to their most
// conservative reading (untimed cue, empty option list).
package content

// Option is a selectable answer. Label is shown to the learner, Value is what
// gets submitted and compared.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Question is a single gradable prompt inside a cue.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Answer  string   `json:"answer,omitempty"` // expected option value or free text
}

// Gradable reports whether the question carries an expected answer.
func (q Question) Gradable() bool {
	return q.Answer != ""
}

// Cue is a quiz injected at TriggerAt seconds into a lesson's video, or
// opened by the learner when TriggerAt is nil.
type Cue struct {
	ID        string     `json:"id"`
	LessonID  string     `json:"lessonId"`
	TriggerAt *int       `json:"triggerAt"`
	Questions []Question `json:"questions"`
}

// Timed reports whether the cue fires automatically during playback.
func (c Cue) Timed() bool {
	return c.TriggerAt != nil
}

// Key identifies the cue across the whole course. Cue ids are only unique
// within their lesson.
func (c Cue) Key() string {
	return CueKey(c.LessonID, c.ID)
}

// CueKey builds the course-wide key for a lesson's cue.
func CueKey(lessonID, cueID string) string {
	return lessonID + "/" + cueID
}
