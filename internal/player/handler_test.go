package player_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-comply/internal/course"
	"github.com/p-n-ai/pai-comply/internal/player"
	"github.com/p-n-ai/pai-comply/internal/progress"
	"github.com/p-n-ai/pai-comply/internal/session"
)

func testCourses() *course.Loader {
	return course.NewStaticLoader(&course.Course{
		ID: "fire-safety",
		Lessons: []course.Lesson{{
			ID:       "l1",
			Duration: 60,
			Media:    "l1.mp4",
			Content: map[string]any{"quizzes": []any{
				map[string]any{"id": "q10", "question": "A?", "options": "x;y", "answer": "x", "appearAt": 10},
				map[string]any{"id": "q40", "question": "B?", "options": "x;y", "answer": "y", "appearAt": 40},
			}},
		}},
	})
}

type testServer struct {
	url    string
	store  *progress.MemoryStore
	events *session.MemoryEventLogger
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	ts := testServer{store: progress.NewMemoryStore(), events: session.NewMemoryEventLogger()}

	mux := http.NewServeMux()
	mux.Handle("GET /courses/{courseID}/play", player.NewHandler(player.HandlerConfig{
		Courses:      testCourses(),
		Store:        ts.store,
		Events:       ts.events,
		Debounce:     time.Hour,
		MediaBaseURL: "https://cdn.example.com/videos",
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	ts.url = srv.URL
	return ts
}

type client struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dial(t *testing.T, ts testServer, path string) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.url, "http")+path, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return &client{t: t, ctx: ctx, conn: conn}
}

func (c *client) send(msg map[string]any) {
	c.t.Helper()
	if err := wsjson.Write(c.ctx, c.conn, msg); err != nil {
		c.t.Fatalf("Write() error = %v", err)
	}
}

// playTo reports one time update per second from past from up to to.
func (c *client) playTo(from, to float64) {
	c.t.Helper()
	for pos := from + 1; pos < to; pos++ {
		c.send(map[string]any{"type": "timeupdate", "position": pos})
	}
	c.send(map[string]any{"type": "timeupdate", "position": to})
}

// expect reads commands until one of the given type arrives.
func (c *client) expect(cmdType string) player.Command {
	c.t.Helper()
	for {
		var cmd player.Command
		if err := wsjson.Read(c.ctx, c.conn, &cmd); err != nil {
			c.t.Fatalf("waiting for %s: %v", cmdType, err)
		}
		if cmd.Type == cmdType {
			return cmd
		}
	}
}

func TestHandler_QuizFlow(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts, "/courses/fire-safety/play?user=learner-1")

	if p := c.expect(player.CmdProgress); *p.Progress != 0 {
		t.Errorf("initial progress = %d, want 0", *p.Progress)
	}

	c.send(map[string]any{"type": "open_lesson", "lessonId": "l1", "position": 0, "duration": 60})
	lesson := c.expect(player.CmdLesson)
	if lesson.Media != "https://cdn.example.com/videos/l1.mp4" {
		t.Errorf("media = %q", lesson.Media)
	}

	c.playTo(0, 10.1)
	c.expect(player.CmdPause)
	cue := c.expect(player.CmdCue)
	if cue.Cue.ID != "q10" || len(cue.Cue.Questions[0].Options) != 2 {
		t.Fatalf("cue = %+v", cue.Cue)
	}

	c.send(map[string]any{"type": "submit", "cueId": "q10", "answers": map[string]string{"0": "x"}})
	if r := c.expect(player.CmdReport); !r.Report.Passed {
		t.Errorf("q10 report = %+v, want pass", r.Report)
	}
	c.expect(player.CmdPlay)

	c.send(map[string]any{"type": "seeking", "position": 55})
	if s := c.expect(player.CmdSeek); *s.Position != 10.1 {
		t.Errorf("rejected seek went to %v, want 10.1", *s.Position)
	}
	// the browser reports the scrub target once more before the seek lands
	c.send(map[string]any{"type": "timeupdate", "position": 55})
	if s := c.expect(player.CmdSeek); *s.Position != 10.1 {
		t.Errorf("skipping time update went to %v, want 10.1", *s.Position)
	}

	c.playTo(10.1, 40)
	c.expect(player.CmdCue)
	c.send(map[string]any{"type": "submit", "cueId": "q40", "answers": map[string]string{"0": "x"}})
	if r := c.expect(player.CmdReport); r.Report.Passed {
		t.Errorf("q40 report = %+v, want fail", r.Report)
	}
	if s := c.expect(player.CmdSeek); *s.Position != 35 {
		t.Errorf("remediation seek = %v, want 35", *s.Position)
	}
	c.expect(player.CmdPlay)

	c.send(map[string]any{"type": "timeupdate", "position": 40.2})
	c.expect(player.CmdCue)
	c.send(map[string]any{"type": "submit", "cueId": "q40", "answers": map[string]string{"0": "y"}})
	c.expect(player.CmdLessonWatched)
	p := c.expect(player.CmdProgress)
	// 1 intro + 1 lesson + 2 cues, intro not watched
	if *p.Progress != 75 || p.CertificateEligible {
		t.Errorf("progress = %d eligible=%v, want 75 false", *p.Progress, p.CertificateEligible)
	}

	c.send(map[string]any{"type": "intro_watched"})
	p = c.expect(player.CmdProgress)
	if *p.Progress != 100 || !p.CertificateEligible {
		t.Errorf("progress = %d eligible=%v, want 100 true", *p.Progress, p.CertificateEligible)
	}

	c.conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(5 * time.Second)
	for ts.store.Writes() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	rec, ok, err := ts.store.Read(context.Background(), "learner-1", "fire-safety")
	if err != nil || !ok {
		t.Fatalf("progress not flushed on disconnect: %v %v", ok, err)
	}
	if rec.Progress != 100 || !rec.WatchedSections["l1"] {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestHandler_ErrorsAreNonFatal(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts, "/courses/fire-safety/play?user=learner-1")
	c.expect(player.CmdProgress)

	tests := []struct {
		msg  map[string]any
		code string
	}{
		{map[string]any{"type": "bogus"}, "invalid_event"},
		{map[string]any{"type": "timeupdate", "position": 3}, "no_active_lesson"},
		{map[string]any{"type": "open_lesson", "lessonId": "nope"}, "unknown_lesson"},
	}
	for _, tt := range tests {
		c.send(tt.msg)
		if e := c.expect(player.CmdError); e.Code != tt.code {
			t.Errorf("error code = %q, want %q (%s)", e.Code, tt.code, e.Error)
		}
	}

	c.send(map[string]any{"type": "open_lesson", "lessonId": "l1", "duration": 60})
	c.expect(player.CmdLesson)
	c.send(map[string]any{"type": "submit", "cueId": "q10", "answers": map[string]string{"0": "x"}})
	if e := c.expect(player.CmdError); e.Code != "cue_not_open" {
		t.Errorf("error code = %q, want cue_not_open", e.Code)
	}

	c.send(map[string]any{"type": "play_failed", "error": "NotAllowedError"})
	c.send(map[string]any{"type": "open_cue", "cueId": "q40"})
	if e := c.expect(player.CmdError); e.Code != "cue_not_open" {
		t.Errorf("error code = %q, want cue_not_open", e.Code)
	}
	if len(ts.events.OfType(session.EventPlaybackError)) != 1 {
		t.Error("play_failed should be logged as a playback_error event")
	}
}

func TestHandler_ResumeHeldToFurthest(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts, "/courses/fire-safety/play?user=learner-1")
	c.expect(player.CmdProgress)

	c.send(map[string]any{"type": "open_lesson", "lessonId": "l1", "position": 30, "duration": 60})
	c.expect(player.CmdLesson)
	if s := c.expect(player.CmdSeek); *s.Position != 0 {
		t.Errorf("resume seek = %v, want 0", *s.Position)
	}
}

func TestHandler_RejectsBeforeUpgrade(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"missing user", "/courses/fire-safety/play", "", http.StatusUnauthorized},
		{"unknown course", "/courses/nope/play", "learner-1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.url+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.header != "" {
				req.Header.Set("X-User-ID", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/courses/c/play?user=query-user", nil)
	if got := player.UserID(r); got != "query-user" {
		t.Errorf("UserID() = %q, want query-user", got)
	}
	r.Header.Set("X-User-ID", "header-user")
	if got := player.UserID(r); got != "header-user" {
		t.Errorf("UserID() = %q, want header-user", got)
	}
}
