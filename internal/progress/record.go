package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-comply/internal/quiz"
)

// ErrInvalidRecord is returned when a stored record fails schema validation.
var ErrInvalidRecord = errors.New("invalid progress record")

// Record is the shape exchanged with progress stores. Empty maps are omitted
// so a write never clobbers previously saved state with nothing.
type Record struct {
	WatchedSections map[string]bool               `json:"watchedSections,omitempty"`
	QuizPassed      map[string]bool               `json:"quizPassed,omitempty"`
	QuizReports     map[string]quiz.AttemptReport `json:"quizReports,omitempty"`
	Progress        int                           `json:"progress"`
}

// Record converts the snapshot into its storable form.
func (s Snapshot) Record() Record {
	c := s.Clone()
	rec := Record{Progress: c.Progress}
	if len(c.Watched) > 0 {
		rec.WatchedSections = c.Watched
	}
	if len(c.Passed) > 0 {
		rec.QuizPassed = c.Passed
	}
	if len(c.Reports) > 0 {
		rec.QuizReports = c.Reports
	}
	return rec
}

// FromRecord rebuilds a snapshot from a stored record.
func FromRecord(r Record) Snapshot {
	s := NewSnapshot()
	for k, v := range r.WatchedSections {
		s.Watched[k] = v
	}
	for k, v := range r.QuizPassed {
		s.Passed[k] = v
	}
	for k, v := range r.QuizReports {
		s.Reports[k] = v
	}
	s.Progress = r.Progress
	return s
}

const recordSchemaJSON = `{
  "type": "object",
  "properties": {
    "watchedSections": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "boolean"}
    },
    "quizPassed": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "boolean"}
    },
    "quizReports": {
      "type": ["object", "null"],
      "additionalProperties": {
        "type": "object",
        "required": ["cueId", "score", "maxScore", "passed"],
        "properties": {
          "cueId": {"type": "string"},
          "lessonId": {"type": "string"},
          "score": {"type": "integer", "minimum": 0},
          "maxScore": {"type": "integer", "minimum": 0},
          "percentage": {"type": "number", "minimum": 0, "maximum": 100},
          "passed": {"type": "boolean"},
          "details": {"type": ["array", "null"]},
          "submittedAt": {"type": "string"}
        }
      }
    },
    "progress": {"type": "integer", "minimum": 0, "maximum": 100}
  }
}`

var recordSchema = mustSchema(recordSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile progress schema: %v", err))
	}
	return s
}

// DecodeRecord validates data against the record schema and decodes it.
func DecodeRecord(data []byte) (Record, error) {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Record{}, fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}

// recordParts encodes the non-empty maps of rec; empty maps come back nil.
func recordParts(rec Record) (watched, passed, reports []byte, err error) {
	if len(rec.WatchedSections) > 0 {
		if watched, err = json.Marshal(rec.WatchedSections); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal watched sections: %w", err)
		}
	}
	if len(rec.QuizPassed) > 0 {
		if passed, err = json.Marshal(rec.QuizPassed); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal quiz passed: %w", err)
		}
	}
	if len(rec.QuizReports) > 0 {
		if reports, err = json.Marshal(rec.QuizReports); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal quiz reports: %w", err)
		}
	}
	return watched, passed, reports, nil
}

// assembleRecord joins stored parts back into one JSON document.
func assembleRecord(watched, passed, reports []byte, progress int) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(watched) > 0 {
		doc["watchedSections"] = watched
	}
	if len(passed) > 0 {
		doc["quizPassed"] = passed
	}
	if len(reports) > 0 {
		doc["quizReports"] = reports
	}
	p, err := json.Marshal(progress)
	if err != nil {
		return nil, err
	}
	doc["progress"] = p
	return json.Marshal(doc)
}

// merge applies an incoming record onto a stored one: non-empty maps replace
// stored maps, empty ones leave them alone.
func merge(stored, incoming Record) Record {
	out := stored
	if len(incoming.WatchedSections) > 0 {
		out.WatchedSections = incoming.WatchedSections
	}
	if len(incoming.QuizPassed) > 0 {
		out.QuizPassed = incoming.QuizPassed
	}
	if len(incoming.QuizReports) > 0 {
		out.QuizReports = incoming.QuizReports
	}
	out.Progress = incoming.Progress
	return out
}
