// Package session runs one learner's pass through a course: it guards
// playback, fires quiz cues, grades attempts, drives remediation and keeps the
// progress snapshot persisted.
//
// A Session is not safe for concurrent use. The transport drives it from a
// single goroutine; only the debounced persistence runs in the background.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-comply/internal/content"
	"github.com/p-n-ai/pai-comply/internal/course"
	"github.com/p-n-ai/pai-comply/internal/playback"
	"github.com/p-n-ai/pai-comply/internal/progress"
	"github.com/p-n-ai/pai-comply/internal/quiz"
)

var (
	ErrSessionClosed     = errors.New("session closed")
	ErrUnknownLesson     = errors.New("unknown lesson")
	ErrUnknownCue        = errors.New("unknown cue")
	ErrNoActiveLesson    = errors.New("no active lesson")
	ErrCueNotOpen        = errors.New("cue not open")
	ErrCueAlreadyOpen    = errors.New("another cue is open")
	ErrAttemptsExhausted = errors.New("attempts exhausted")
)

// Config holds dependencies for a Session.
type Config struct {
	ID          string // generated when empty
	UserID      string
	Course      *course.Course
	Store       progress.Store // defaults to an in-memory store
	Events      EventLogger    // defaults to NopEventLogger
	Debounce    time.Duration  // persistence debounce (default 800ms)
	MaxAttempts int            // per cue, 0 means unlimited
	Guard       playback.GuardConfig
	Now         func() time.Time
}

// Step reports what an operation did, so the transport can mirror it on the
// client.
type Step struct {
	LessonID string
	// Cue is the cue surfaced to the learner. Media is paused while it is open.
	Cue          *content.Cue
	Report       *quiz.AttemptReport
	Watched      bool // the active lesson became watched
	SeekRejected bool
	Rewound      bool
	Position     float64 // playback position after a rejected seek or rewind
	PlaybackErr  error
	Progress     int
}

// Session is one learner working through one course.
type Session struct {
	id          string
	userID      string
	course      *course.Course
	outline     progress.Outline
	events      EventLogger
	persister   *progress.Persister
	store       progress.Store
	maxAttempts int
	guardCfg    playback.GuardConfig
	now         func() time.Time

	snap      progress.Snapshot
	sched     *scheduler
	failed    cueSet
	attempted cueSet
	attempts  map[string]int
	history   []quiz.AttemptReport

	active *activeLesson
	closed bool
}

type activeLesson struct {
	lesson course.Lesson
	cues   []content.Cue
	media  playback.Media
	guard  *playback.Guard
	open   *content.Cue
}

// New creates a session with empty progress. Call Hydrate to resume stored
// progress.
func New(cfg Config) (*Session, error) {
	if cfg.Course == nil {
		return nil, fmt.Errorf("course is nil")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	store := cfg.Store
	if store == nil {
		store = progress.NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		id:          id,
		userID:      cfg.UserID,
		course:      cfg.Course,
		outline:     cfg.Course.Outline(),
		events:      events,
		store:       store,
		maxAttempts: cfg.MaxAttempts,
		guardCfg:    cfg.Guard,
		now:         now,
		persister: progress.NewPersister(progress.PersisterConfig{
			Store:    store,
			UserID:   cfg.UserID,
			CourseID: cfg.Course.ID,
			Delay:    cfg.Debounce,
		}),
		snap:      progress.NewSnapshot(),
		sched:     newScheduler(),
		failed:    make(cueSet),
		attempted: make(cueSet),
		attempts:  make(map[string]int),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Hydrate loads stored progress. A record that fails validation is logged and
// ignored; a store error is returned and the session keeps empty progress.
func (s *Session) Hydrate(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	rec, ok, err := s.store.Read(ctx, s.userID, s.course.ID)
	if err != nil {
		if errors.Is(err, progress.ErrInvalidRecord) {
			slog.Warn("ignoring invalid progress record",
				"user_id", s.userID,
				"course_id", s.course.ID,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("hydrate progress: %w", err)
	}
	if !ok {
		return nil
	}

	s.snap = progress.FromRecord(rec)
	s.history = s.history[:0]
	for _, l := range s.course.Lessons {
		for _, c := range s.course.Cues(l.ID) {
			r, ok := s.snap.Reports[c.Key()]
			if !ok {
				continue
			}
			s.attempted.add(l.ID, c.ID)
			s.attempts[c.Key()] = 1
			if !s.snap.Passed[c.Key()] {
				s.failed.add(l.ID, c.ID)
			}
			s.history = append(s.history, r)
		}
	}
	sort.SliceStable(s.history, func(i, j int) bool {
		return s.history[i].SubmittedAt.Before(s.history[j].SubmittedAt)
	})
	s.snap.Progress = progress.Completion(s.outline, s.snap)

	slog.Info("progress hydrated",
		"session_id", s.id,
		"user_id", s.userID,
		"course_id", s.course.ID,
		"progress", s.snap.Progress,
	)
	return nil
}

// OpenLesson makes lessonID the active lesson, played through media. A lesson
// already watched can be seeked freely.
func (s *Session) OpenLesson(lessonID string, media playback.Media) (Step, error) {
	if s.closed {
		return Step{}, ErrSessionClosed
	}
	lesson, ok := s.course.Lesson(lessonID)
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrUnknownLesson, lessonID)
	}

	cfg := s.guardCfg
	cfg.FallbackDuration = lesson.Duration
	if s.snap.Watched[lessonID] {
		cfg.Furthest = max(lesson.Duration, media.Duration())
	}

	s.active = &activeLesson{
		lesson: lesson,
		cues:   s.course.Cues(lessonID),
		media:  media,
		guard:  playback.NewGuard(media, cfg),
	}
	return Step{LessonID: lessonID, Progress: s.snap.Progress}, nil
}

// WatchIntro marks the course introduction as watched.
func (s *Session) WatchIntro() (Step, error) {
	if s.closed {
		return Step{}, ErrSessionClosed
	}
	if !s.snap.Watched[progress.IntroKey] {
		s.snap.Watched[progress.IntroKey] = true
		s.changed()
	}
	return Step{Progress: s.snap.Progress}, nil
}

// TimeUpdate handles natural playback progress of the active lesson. It
// fires the next due cue, or marks a cue-less lesson watched once enough of
// it has played. A position that skipped ahead is forced back like a seek.
func (s *Session) TimeUpdate() (Step, error) {
	a, err := s.activeLesson()
	if err != nil {
		return Step{}, err
	}
	step := Step{LessonID: a.lesson.ID}

	pos, skipped := a.guard.Advance()
	if skipped {
		s.rejectSkip(&step, pos, "timeupdate")
	} else if len(a.cues) == 0 {
		if a.guard.ReachedThreshold() {
			s.markWatched(&step)
		}
	} else if a.open == nil {
		if cue, ok := s.sched.Next(a.lesson.ID, a.cues, pos, s.isPassed); ok {
			s.surface(&step, cue)
			s.emit(EventCueFired, a.lesson.ID, map[string]any{
				"cue_id":   cue.ID,
				"position": pos,
			})
		}
	}

	step.Progress = s.snap.Progress
	return step, nil
}

// Seek validates a learner seek on the active lesson.
func (s *Session) Seek() (Step, error) {
	a, err := s.activeLesson()
	if err != nil {
		return Step{}, err
	}
	step := Step{LessonID: a.lesson.ID, Progress: s.snap.Progress}

	pos, rejected := a.guard.Seek()
	if rejected {
		s.rejectSkip(&step, pos, "seeking")
	}
	return step, nil
}

func (s *Session) rejectSkip(step *Step, furthest float64, source string) {
	step.SeekRejected = true
	step.Position = furthest
	s.emit(EventSeekRejected, s.active.lesson.ID, map[string]any{
		"furthest": furthest,
		"source":   source,
	})
}

// Ended handles the end-of-media signal for the active lesson. An end reached
// by skipping ahead is rejected like a seek.
func (s *Session) Ended() (Step, error) {
	a, err := s.activeLesson()
	if err != nil {
		return Step{}, err
	}
	step := Step{LessonID: a.lesson.ID}

	if pos, skipped := a.guard.Advance(); skipped {
		s.rejectSkip(&step, pos, "ended")
	} else if len(a.cues) == 0 {
		s.markWatched(&step)
	} else if a.open == nil {
		s.remediate(&step)
		if step.Rewound {
			s.play(&step)
		}
	}

	step.Progress = s.snap.Progress
	return step, nil
}

// OpenCue surfaces a cue at the learner's request. Timed cues can only be
// opened once playback has reached them.
func (s *Session) OpenCue(cueID string) (Step, error) {
	a, err := s.activeLesson()
	if err != nil {
		return Step{}, err
	}
	cue, ok := findCue(a.cues, cueID)
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrUnknownCue, cueID)
	}
	if a.open != nil {
		return Step{}, fmt.Errorf("%w: %s", ErrCueAlreadyOpen, a.open.ID)
	}
	if s.exhausted(cue) {
		return Step{}, fmt.Errorf("%w: %s", ErrAttemptsExhausted, cueID)
	}
	if cue.Timed() && float64(*cue.TriggerAt) > a.guard.Furthest() {
		return Step{}, fmt.Errorf("%w: %s not reached yet", ErrCueNotOpen, cueID)
	}

	step := Step{LessonID: a.lesson.ID}
	s.surface(&step, cue)
	step.Progress = s.snap.Progress
	return step, nil
}

// Submit grades answers for the open cue, resumes playback and runs
// remediation once every cue of the lesson has been attempted.
func (s *Session) Submit(cueID string, answers quiz.Answers) (Step, error) {
	a, err := s.activeLesson()
	if err != nil {
		return Step{}, err
	}
	cue, ok := findCue(a.cues, cueID)
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrUnknownCue, cueID)
	}
	if a.open == nil || a.open.ID != cueID {
		return Step{}, fmt.Errorf("%w: %s", ErrCueNotOpen, cueID)
	}
	if s.exhausted(cue) {
		return Step{}, fmt.Errorf("%w: %s", ErrAttemptsExhausted, cueID)
	}

	step := Step{LessonID: a.lesson.ID}
	report := quiz.Grade(cue, answers, s.now())
	step.Report = &report
	a.open = nil

	key := cue.Key()
	s.attempts[key]++
	s.attempted.add(a.lesson.ID, cue.ID)
	s.history = append(s.history, report)
	s.snap.Reports[key] = report
	if report.Passed {
		s.snap.Passed[key] = true
		s.failed.remove(a.lesson.ID, cue.ID)
	} else {
		s.snap.Passed[key] = false
		s.failed.add(a.lesson.ID, cue.ID)
		if !s.exhausted(cue) {
			s.sched.Rearm(a.lesson.ID, cue.ID)
		}
	}
	s.changed()

	s.emit(EventAttemptGraded, a.lesson.ID, map[string]any{
		"cue_id":     cue.ID,
		"score":      report.Score,
		"max_score":  report.MaxScore,
		"percentage": report.Percentage,
		"passed":     report.Passed,
		"attempt":    s.attempts[key],
	})

	if s.allAttempted(a) {
		s.remediate(&step)
	}
	if step.Cue == nil {
		s.play(&step)
	}

	step.Progress = s.snap.Progress
	return step, nil
}

// Progress returns the completion percentage.
func (s *Session) Progress() (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.snap.Progress, nil
}

// Snapshot returns a copy of the current progress snapshot.
func (s *Session) Snapshot() (progress.Snapshot, error) {
	if s.closed {
		return progress.Snapshot{}, ErrSessionClosed
	}
	return s.snap.Clone(), nil
}

// History returns every attempt report in submission order, including the
// latest reports restored by Hydrate.
func (s *Session) History() ([]quiz.AttemptReport, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	return append([]quiz.AttemptReport(nil), s.history...), nil
}

// Close stops the session and flushes pending progress. Pending debounce
// timers are cancelled first.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.active = nil

	if err := s.persister.Close(ctx); err != nil {
		return fmt.Errorf("final progress flush: %w", err)
	}
	return nil
}

func (s *Session) activeLesson() (*activeLesson, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.active == nil {
		return nil, ErrNoActiveLesson
	}
	return s.active, nil
}

// surface pauses the media and presents cue to the learner.
func (s *Session) surface(step *Step, cue content.Cue) {
	a := s.active
	a.media.Pause()
	a.open = &cue
	s.sched.MarkShown(a.lesson.ID, cue.ID)
	step.Cue = &cue
}

// play resumes the media. A failure is surfaced but changes no state.
func (s *Session) play(step *Step) {
	a := s.active
	if err := a.media.Play(); err != nil {
		step.PlaybackErr = err
		slog.Warn("media playback failed",
			"session_id", s.id,
			"lesson_id", a.lesson.ID,
			"error", err,
		)
		s.emit(EventPlaybackError, a.lesson.ID, map[string]any{"error": err.Error()})
	}
}

func (s *Session) markWatched(step *Step) {
	id := s.active.lesson.ID
	if s.snap.Watched[id] {
		return
	}
	s.snap.Watched[id] = true
	step.Watched = true
	s.changed()
	s.emit(EventLessonWatched, id, nil)
}

// changed recomputes the completion percentage and schedules persistence.
func (s *Session) changed() {
	s.snap.Progress = progress.Completion(s.outline, s.snap)
	s.persister.Schedule(s.snap.Record())
}

func (s *Session) isPassed(c content.Cue) bool {
	return s.snap.Passed[c.Key()]
}

func (s *Session) exhausted(c content.Cue) bool {
	return s.maxAttempts > 0 && s.attempts[c.Key()] >= s.maxAttempts
}

func (s *Session) allAttempted(a *activeLesson) bool {
	for _, c := range a.cues {
		if !s.attempted.has(a.lesson.ID, c.ID) {
			return false
		}
	}
	return true
}

func (s *Session) emit(eventType, lessonID string, data map[string]any) {
	err := s.events.LogEvent(Event{
		SessionID: s.id,
		UserID:    s.userID,
		CourseID:  s.course.ID,
		LessonID:  lessonID,
		EventType: eventType,
		Data:      data,
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Warn("failed to log event", "type", eventType, "session_id", s.id, "error", err)
	}
}

func findCue(cues []content.Cue, id string) (content.Cue, bool) {
	for _, c := range cues {
		if c.ID == id {
			return c, true
		}
	}
	return content.Cue{}, false
}

// Failed returns the ids of a lesson's cues whose latest attempt failed, in
// cue order.
func (s *Session) Failed(lessonID string) []string {
	var ids []string
	for _, c := range s.course.Cues(lessonID) {
		if s.failed.has(lessonID, c.ID) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// PlaybackFailed records a playback failure reported by the client. Playback
// stays under learner control and no state changes.
func (s *Session) PlaybackFailed(reason string) error {
	a, err := s.activeLesson()
	if err != nil {
		return err
	}
	slog.Warn("client playback failed",
		"session_id", s.id,
		"lesson_id", a.lesson.ID,
		"reason", reason,
	)
	s.emit(EventPlaybackError, a.lesson.ID, map[string]any{"error": reason, "source": "client"})
	return nil
}
