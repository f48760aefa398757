// Package player drives a learner session over a WebSocket connection to the
// browser video player.
package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-comply/internal/content"
	"github.com/p-n-ai/pai-comply/internal/quiz"
)

// Client event types.
const (
	EventOpenLesson   = "open_lesson"
	EventIntroWatched = "intro_watched"
	EventTimeUpdate   = "timeupdate"
	EventSeeking      = "seeking"
	EventEnded        = "ended"
	EventOpenCue      = "open_cue"
	EventSubmit       = "submit"
	EventPlayFailed   = "play_failed"
)

// Server command types.
const (
	CmdLesson        = "lesson"
	CmdSeek          = "seek"
	CmdPlay          = "play"
	CmdPause         = "pause"
	CmdCue           = "cue"
	CmdReport        = "report"
	CmdProgress      = "progress"
	CmdLessonWatched = "lesson_watched"
	CmdError         = "error"
)

// ErrInvalidEvent is returned for client messages that fail validation.
var ErrInvalidEvent = errors.New("invalid event")

// Inbound is an event sent by the browser player.
type Inbound struct {
	Type     string            `json:"type"`
	LessonID string            `json:"lessonId,omitempty"`
	CueID    string            `json:"cueId,omitempty"`
	Position float64           `json:"position,omitempty"`
	Duration float64           `json:"duration,omitempty"`
	Answers  map[string]string `json:"answers,omitempty"` // question index -> value
	Error    string            `json:"error,omitempty"`
}

// Command is an instruction or update sent to the browser player.
type Command struct {
	Type                string              `json:"type"`
	LessonID            string              `json:"lessonId,omitempty"`
	Media               string              `json:"media,omitempty"`
	Position            *float64            `json:"position,omitempty"`
	Cue                 *CueView            `json:"cue,omitempty"`
	Report              *quiz.AttemptReport `json:"report,omitempty"`
	Progress            *int                `json:"progress,omitempty"`
	CertificateEligible bool                `json:"certificateEligible,omitempty"`
	Code                string              `json:"code,omitempty"`
	Error               string              `json:"error,omitempty"`
}

// CueView is a cue as shown to the learner, without expected answers.
type CueView struct {
	ID        string         `json:"id"`
	TriggerAt *int           `json:"triggerAt"`
	Questions []QuestionView `json:"questions"`
}

// QuestionView is a question without its expected answer. No options means
// free-text input.
type QuestionView struct {
	Prompt  string           `json:"prompt"`
	Options []content.Option `json:"options"`
}

func newCueView(c content.Cue) *CueView {
	v := &CueView{
		ID:        c.ID,
		TriggerAt: c.TriggerAt,
		Questions: make([]QuestionView, len(c.Questions)),
	}
	for i, q := range c.Questions {
		v.Questions[i] = QuestionView{Prompt: q.Prompt, Options: q.Options}
	}
	return v
}

const inboundSchemaJSON = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["open_lesson", "intro_watched", "timeupdate", "seeking", "ended", "open_cue", "submit", "play_failed"]},
    "lessonId": {"type": "string", "minLength": 1},
    "cueId": {"type": "string", "minLength": 1},
    "position": {"type": "number", "minimum": 0},
    "duration": {"type": "number", "minimum": 0},
    "answers": {
      "type": "object",
      "patternProperties": {"^[0-9]+$": {"type": "string"}},
      "additionalProperties": false
    },
    "error": {"type": "string"}
  },
  "oneOf": [
    {"properties": {"type": {"enum": ["open_lesson"]}}, "required": ["lessonId"]},
    {"properties": {"type": {"enum": ["timeupdate", "seeking", "ended"]}}, "required": ["position"]},
    {"properties": {"type": {"enum": ["open_cue"]}}, "required": ["cueId"]},
    {"properties": {"type": {"enum": ["submit"]}}, "required": ["cueId", "answers"]},
    {"properties": {"type": {"enum": ["intro_watched", "play_failed"]}}}
  ]
}`

var inboundSchema = mustSchema(inboundSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile player schema: %v", err))
	}
	return s
}

// DecodeInbound validates and decodes one client message.
func DecodeInbound(data []byte) (Inbound, error) {
	result, err := inboundSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Inbound{}, fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(msgs, "; "))
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return in, nil
}

// quizAnswers converts wire answers into evaluator answers.
func quizAnswers(raw map[string]string) quiz.Answers {
	out := make(quiz.Answers, len(raw))
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[i] = v
	}
	return out
}
