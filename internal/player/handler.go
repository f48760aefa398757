package player

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-comply/internal/course"
	"github.com/p-n-ai/pai-comply/internal/progress"
	"github.com/p-n-ai/pai-comply/internal/session"
)

const defaultCloseTimeout = 5 * time.Second

// HandlerConfig holds dependencies for the player endpoint.
type HandlerConfig struct {
	Courses        *course.Loader
	Store          progress.Store
	Events         session.EventLogger
	Debounce       time.Duration
	MaxAttempts    int
	MediaBaseURL   string
	OriginPatterns []string
	CloseTimeout   time.Duration // bound on the final progress flush (default 5s)
}

// Handler serves GET /courses/{courseID}/play. Each connection owns one
// session, driven by the connection's read loop.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates the player endpoint.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	return &Handler{cfg: cfg}
}

// UserID returns the learner id of a request: the X-User-ID header, or the
// user query parameter.
func UserID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("user"))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	c, err := h.cfg.Courses.GetCourse(r.PathValue("courseID"))
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	sess, err := session.New(session.Config{
		UserID:      userID,
		Course:      c,
		Store:       h.cfg.Store,
		Events:      h.cfg.Events,
		Debounce:    h.cfg.Debounce,
		MaxAttempts: h.cfg.MaxAttempts,
	})
	if err != nil {
		slog.Error("failed to create session", "user_id", userID, "course_id", c.ID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if err := sess.Hydrate(r.Context()); err != nil {
		slog.Warn("starting with empty progress", "session_id", sess.ID(), "error", err)
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sess.ID(), "error", err)
		h.closeSession(sess)
		return
	}
	defer conn.CloseNow()

	slog.Info("player connected",
		"session_id", sess.ID(),
		"user_id", userID,
		"course_id", c.ID,
	)
	h.serve(r.Context(), conn, newPlayerSession(c, sess, h.cfg.MediaBaseURL))
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, ps *playerSession) {
	defer h.closeSession(ps.sess)

	for _, cmd := range ps.hello() {
		if err := wsjson.Write(ctx, conn, cmd); err != nil {
			return
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				slog.Debug("player read ended", "session_id", ps.sess.ID(), "error", err)
			}
			return
		}

		var cmds []Command
		in, err := DecodeInbound(data)
		if err != nil {
			cmds = []Command{errorCommand(err)}
		} else {
			cmds = ps.handle(in)
		}

		for _, cmd := range cmds {
			if err := wsjson.Write(ctx, conn, cmd); err != nil {
				slog.Warn("player write failed", "session_id", ps.sess.ID(), "error", err)
				return
			}
		}
	}
}

func (h *Handler) closeSession(sess *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CloseTimeout)
	defer cancel()

	if err := sess.Close(ctx); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		slog.Warn("final progress flush failed", "session_id", sess.ID(), "error", err)
		return
	}
	slog.Info("player disconnected", "session_id", sess.ID())
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
