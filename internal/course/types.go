// Package course loads compliance courses and their lessons from disk.
package course

import (
	"github.com/p-n-ai/pai-comply/internal/content"
	"github.com/p-n-ai/pai-comply/internal/progress"
)

// Course is a training course loaded from YAML or JSON.
type Course struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	IntroMedia string   `yaml:"intro_media"`
	Lessons    []Lesson `yaml:"lessons"`

	cues map[string][]content.Cue
}

// Lesson is one video section of a course. Content is the raw quiz payload in
// whatever shape the author produced it.
type Lesson struct {
	ID       string  `yaml:"id"`
	Title    string  `yaml:"title"`
	Duration float64 `yaml:"duration"` // seconds, optional
	Media    string  `yaml:"media"`
	Content  any     `yaml:"content"`
}

// Lesson returns the lesson with the given id.
func (c *Course) Lesson(id string) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

// Cues returns the normalized cues of a lesson.
func (c *Course) Cues(lessonID string) []content.Cue {
	if c.cues == nil {
		c.normalize()
	}
	return c.cues[lessonID]
}

// Outline lists every lesson and cue the completion percentage counts.
func (c *Course) Outline() progress.Outline {
	o := progress.Outline{LessonIDs: make([]string, 0, len(c.Lessons))}
	for _, l := range c.Lessons {
		o.LessonIDs = append(o.LessonIDs, l.ID)
		for _, cue := range c.Cues(l.ID) {
			o.CueKeys = append(o.CueKeys, cue.Key())
		}
	}
	return o
}

func (c *Course) normalize() {
	c.cues = make(map[string][]content.Cue, len(c.Lessons))
	for _, l := range c.Lessons {
		c.cues[l.ID] = content.Normalize(l.ID, l.Content)
	}
}
