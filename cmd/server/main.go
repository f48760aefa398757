package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-comply/internal/course"
	"github.com/p-n-ai/pai-comply/internal/platform/cache"
	"github.com/p-n-ai/pai-comply/internal/platform/config"
	"github.com/p-n-ai/pai-comply/internal/platform/database"
	"github.com/p-n-ai/pai-comply/internal/player"
	"github.com/p-n-ai/pai-comply/internal/progress"
	"github.com/p-n-ai/pai-comply/internal/quiz"
	"github.com/p-n-ai/pai-comply/internal/session"
)

// app holds the dependencies shared by the HTTP handlers.
type app struct {
	courses   *course.Loader
	store     progress.Store
	events    session.EventLogger
	checks    map[string]healthChecker
	playerCfg player.HandlerConfig
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, cleanup, err := setup(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     newMux(a),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "progress_backend", cfg.Progress.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	level, _ := lc.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// setup opens the configured backing services and builds the app. The
// returned cleanup closes whatever was opened.
func setup(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*app, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	courses, err := course.NewLoader(cfg.CoursePath)
	if err != nil {
		return fail(fmt.Errorf("loading courses: %w", err))
	}
	slog.Info("courses loaded", "count", len(courses.AllCourses()), "path", cfg.CoursePath)

	a := &app{
		courses: courses,
		events:  session.NopEventLogger{},
		checks:  map[string]healthChecker{},
	}

	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fail(err)
		}
		a.checks["database"] = db
	}

	var c *cache.Cache
	if cfg.Cache.URL != "" {
		c, err = cache.New(ctx, cfg.Cache.URL, cfg.Cache.KeyPrefix)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = c.Close() })
		a.checks["cache"] = c
	}

	switch cfg.Progress.Backend {
	case config.BackendPostgres:
		a.store, err = progress.NewPostgresStore(db.Pool)
	case config.BackendRedis:
		a.store, err = progress.NewRedisStore(c)
	case config.BackendSQLite:
		var s *progress.SQLiteStore
		s, err = progress.NewSQLiteStore(cfg.Progress.SQLitePath)
		if err == nil {
			closers = append(closers, func() { _ = s.Close() })
			a.store = s
		}
	default:
		a.store = progress.NewMemoryStore()
	}
	if err != nil {
		return fail(fmt.Errorf("progress store: %w", err))
	}

	if cfg.Events.Enabled {
		a.events = session.NewPostgresEventLogger(db.Pool)
	}

	a.playerCfg = player.HandlerConfig{
		Courses:        courses,
		Store:          a.store,
		Events:         a.events,
		Debounce:       cfg.Progress.Debounce,
		MaxAttempts:    cfg.Progress.MaxAttempts,
		MediaBaseURL:   cfg.Player.MediaBaseURL,
		OriginPatterns: cfg.Player.OriginPatterns,
	}
	return a, cleanup, nil
}

// newMux creates the HTTP router with health checks, progress reads and the
// player endpoint.
func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)
	mux.HandleFunc("GET /courses", a.handleCourses)
	mux.HandleFunc("GET /courses/{courseID}/progress", a.handleProgress)
	mux.HandleFunc("GET /courses/{courseID}/reports.xlsx", a.handleReports)
	mux.Handle("GET /courses/{courseID}/play", player.NewHandler(a.playerCfg))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (a *app) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, c := range a.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"failed": name,
			})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

type courseSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Lessons int    `json:"lessons"`
}

func (a *app) handleCourses(w http.ResponseWriter, r *http.Request) {
	all := a.courses.AllCourses()
	out := make([]courseSummary, 0, len(all))
	for _, c := range all {
		out = append(out, courseSummary{ID: c.ID, Title: c.Title, Lessons: len(c.Lessons)})
	}
	writeJSON(w, http.StatusOK, out)
}

type progressResponse struct {
	CourseID string `json:"courseId"`
	progress.Record
	CertificateEligible bool `json:"certificateEligible"`
}

// loadRecord resolves the caller and course of a progress request, writing
// the error response itself when either is missing.
func (a *app) loadRecord(w http.ResponseWriter, r *http.Request) (*course.Course, progress.Record, bool) {
	userID := player.UserID(r)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user id"})
		return nil, progress.Record{}, false
	}
	c, err := a.courses.GetCourse(r.PathValue("courseID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, progress.Record{}, false
	}
	rec, _, err := a.store.Read(r.Context(), userID, c.ID)
	if err != nil && !errors.Is(err, progress.ErrInvalidRecord) {
		slog.Error("failed to read progress", "user_id", userID, "course_id", c.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "progress unavailable"})
		return nil, progress.Record{}, false
	}
	return c, rec, true
}

func (a *app) handleProgress(w http.ResponseWriter, r *http.Request) {
	c, rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		CourseID:            c.ID,
		Record:              rec,
		CertificateEligible: rec.Progress == 100,
	})
}

func (a *app) handleReports(w http.ResponseWriter, r *http.Request) {
	c, rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	reports := make([]quiz.AttemptReport, 0, len(rec.QuizReports))
	for _, rep := range rec.QuizReports {
		reports = append(reports, rep)
	}

	var buf bytes.Buffer
	if err := progress.ExportReports(&buf, reports); err != nil {
		slog.Error("failed to export reports", "course_id", c.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-reports.xlsx"`, c.ID))
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
