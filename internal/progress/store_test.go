package progress_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-comply/internal/progress"
	"github.com/p-n-ai/pai-comply/internal/quiz"
)

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, store progress.Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Read(ctx, "u1", "course"); err != nil || ok {
		t.Fatalf("Read() on empty store = %v, %v; want not found", ok, err)
	}

	first := progress.Record{
		WatchedSections: map[string]bool{"course-intro": true, "l1": true},
		QuizPassed:      map[string]bool{"l1/c1": true},
		QuizReports: map[string]quiz.AttemptReport{
			"l1/c1": {CueID: "c1", LessonID: "l1", Score: 1, MaxScore: 1, Percentage: 100, Passed: true},
		},
		Progress: 75,
	}
	if err := store.Write(ctx, "u1", "course", first); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Empty maps must not clobber stored ones.
	if err := store.Write(ctx, "u1", "course", progress.Record{Progress: 80}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, ok, err := store.Read(ctx, "u1", "course")
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v", ok, err)
	}
	if got.Progress != 80 {
		t.Errorf("Progress = %d, want 80", got.Progress)
	}
	if !got.WatchedSections["l1"] || !got.WatchedSections["course-intro"] {
		t.Errorf("WatchedSections = %v", got.WatchedSections)
	}
	if !got.QuizPassed["l1/c1"] {
		t.Errorf("QuizPassed = %v", got.QuizPassed)
	}
	if r := got.QuizReports["l1/c1"]; !r.Passed || r.Score != 1 {
		t.Errorf("QuizReports = %+v", got.QuizReports)
	}

	// Non-empty maps replace stored ones.
	if err := store.Write(ctx, "u1", "course", progress.Record{
		QuizPassed: map[string]bool{"l1/c1": false},
		Progress:   50,
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, _, _ = store.Read(ctx, "u1", "course")
	if got.QuizPassed["l1/c1"] {
		t.Errorf("QuizPassed = %v, want l1/c1 cleared", got.QuizPassed)
	}

	if _, ok, _ := store.Read(ctx, "u2", "course"); ok {
		t.Error("records must be scoped per user")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, progress.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := progress.NewSQLiteStore(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestNewRedisStore_NilClient(t *testing.T) {
	if _, err := progress.NewRedisStore(nil); err == nil {
		t.Fatal("NewRedisStore(nil) should return error")
	}
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := progress.NewPostgresStore(nil); err == nil {
		t.Fatal("NewPostgresStore(nil) should return error")
	}
}
