package player

import (
	"errors"

	"github.com/p-n-ai/pai-comply/internal/course"
	"github.com/p-n-ai/pai-comply/internal/session"
)

// playerSession maps client events onto one session and turns the resulting
// steps into commands.
type playerSession struct {
	course       *course.Course
	sess         *session.Session
	mediaBase    string
	media        *RemoteMedia
	lastProgress int
}

func newPlayerSession(c *course.Course, sess *session.Session, mediaBase string) *playerSession {
	return &playerSession{course: c, sess: sess, mediaBase: mediaBase, lastProgress: -1}
}

// hello returns the commands sent when a connection opens.
func (p *playerSession) hello() []Command {
	pct, err := p.sess.Progress()
	if err != nil {
		return []Command{errorCommand(err)}
	}
	return []Command{p.progressCommand(pct)}
}

func (p *playerSession) handle(in Inbound) []Command {
	var (
		step session.Step
		err  error
	)

	switch in.Type {
	case EventOpenLesson:
		return p.openLesson(in)
	case EventIntroWatched:
		step, err = p.sess.WatchIntro()
	case EventTimeUpdate:
		p.update(in)
		step, err = p.sess.TimeUpdate()
	case EventSeeking:
		p.update(in)
		step, err = p.sess.Seek()
	case EventEnded:
		p.update(in)
		step, err = p.sess.Ended()
	case EventOpenCue:
		step, err = p.sess.OpenCue(in.CueID)
	case EventSubmit:
		step, err = p.sess.Submit(in.CueID, quizAnswers(in.Answers))
	case EventPlayFailed:
		err = p.sess.PlaybackFailed(in.Error)
		if err == nil {
			return nil
		}
	default:
		err = ErrInvalidEvent
	}

	if err != nil {
		return []Command{errorCommand(err)}
	}
	return p.commands(step)
}

func (p *playerSession) openLesson(in Inbound) []Command {
	media := NewRemoteMedia(in.LessonID, in.Position, in.Duration)
	step, err := p.sess.OpenLesson(in.LessonID, media)
	if err != nil {
		return []Command{errorCommand(err)}
	}
	p.media = media

	lesson, _ := p.course.Lesson(in.LessonID)
	cmds := []Command{{
		Type:     CmdLesson,
		LessonID: lesson.ID,
		Media:    course.ResolveMedia(p.mediaBase, lesson.Media),
	}}

	// a client resuming mid-video is held to the furthest point reached
	if in.Position > 0 {
		if seek, err := p.sess.Seek(); err == nil {
			step.SeekRejected = seek.SeekRejected
			step.Position = seek.Position
		}
	}
	return append(cmds, p.commands(step)...)
}

func (p *playerSession) update(in Inbound) {
	if p.media != nil {
		p.media.Update(in.Position, in.Duration)
	}
}

// commands renders a step: the report first, then media control in the
// order it was issued, then the surfaced cue and progress.
func (p *playerSession) commands(step session.Step) []Command {
	var cmds []Command
	if step.Report != nil {
		cmds = append(cmds, Command{Type: CmdReport, LessonID: step.LessonID, Report: step.Report})
	}
	if p.media != nil {
		cmds = append(cmds, p.media.Drain()...)
	}
	if step.Cue != nil {
		cmds = append(cmds, Command{Type: CmdCue, LessonID: step.LessonID, Cue: newCueView(*step.Cue)})
	}
	if step.PlaybackErr != nil {
		cmds = append(cmds, Command{Type: CmdError, Code: "playback_error", Error: step.PlaybackErr.Error()})
	}
	if step.Watched {
		cmds = append(cmds, Command{Type: CmdLessonWatched, LessonID: step.LessonID})
	}
	if step.Progress != p.lastProgress {
		cmds = append(cmds, p.progressCommand(step.Progress))
	}
	return cmds
}

func (p *playerSession) progressCommand(pct int) Command {
	p.lastProgress = pct
	return Command{Type: CmdProgress, Progress: &pct, CertificateEligible: pct == 100}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{session.ErrSessionClosed, "session_closed"},
	{session.ErrUnknownLesson, "unknown_lesson"},
	{session.ErrUnknownCue, "unknown_cue"},
	{session.ErrNoActiveLesson, "no_active_lesson"},
	{session.ErrCueNotOpen, "cue_not_open"},
	{session.ErrCueAlreadyOpen, "cue_already_open"},
	{session.ErrAttemptsExhausted, "attempts_exhausted"},
	{ErrInvalidEvent, "invalid_event"},
}

func errorCommand(err error) Command {
	code := "internal"
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			code = ec.code
			break
		}
	}
	return Command{Type: CmdError, Code: code, Error: err.Error()}
}
