package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-comply/internal/progress"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func record(progressPct int, lesson string) progress.Record {
	return progress.Record{
		WatchedSections: map[string]bool{lesson: true},
		Progress:        progressPct,
	}
}

func TestPersister_CoalescesWrites(t *testing.T) {
	store := progress.NewMemoryStore()
	p := progress.NewPersister(progress.PersisterConfig{
		Store: store, UserID: "u", CourseID: "c", Delay: 30 * time.Millisecond,
	})

	for i := 1; i <= 5; i++ {
		p.Schedule(record(i*10, "l1"))
	}

	waitFor(t, func() bool { return store.Writes() > 0 })
	time.Sleep(60 * time.Millisecond)

	if store.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", store.Writes())
	}
	rec, ok, err := store.Read(context.Background(), "u", "c")
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v", ok, err)
	}
	if rec.Progress != 50 {
		t.Errorf("Progress = %d, want 50 (last write wins)", rec.Progress)
	}
}

func TestPersister_FailureKeepsPending(t *testing.T) {
	store := progress.NewMemoryStore()
	store.WriteErr = errors.New("store down")
	p := progress.NewPersister(progress.PersisterConfig{Store: store, UserID: "u", CourseID: "c", Delay: time.Hour})

	p.Schedule(record(20, "l1"))
	if err := p.Flush(context.Background()); err == nil {
		t.Fatal("Flush() should fail while the store is down")
	}
	if !p.Pending() {
		t.Fatal("record should stay pending after a failed write")
	}

	store.SetWriteErr(nil)
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if p.Pending() {
		t.Error("nothing should be pending after a successful write")
	}
	if store.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", store.Writes())
	}
}

func TestPersister_NewerRecordReplacesFailedOne(t *testing.T) {
	store := progress.NewMemoryStore()
	store.WriteErr = errors.New("store down")
	p := progress.NewPersister(progress.PersisterConfig{Store: store, UserID: "u", CourseID: "c", Delay: time.Hour})

	p.Schedule(record(20, "l1"))
	_ = p.Flush(context.Background())
	p.Schedule(record(40, "l2"))

	store.SetWriteErr(nil)
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	rec, _, _ := store.Read(context.Background(), "u", "c")
	if rec.Progress != 40 || !rec.WatchedSections["l2"] {
		t.Errorf("record = %+v, want the newer one", rec)
	}
}

func TestPersister_CloseFlushesAndStops(t *testing.T) {
	store := progress.NewMemoryStore()
	p := progress.NewPersister(progress.PersisterConfig{Store: store, UserID: "u", CourseID: "c", Delay: time.Hour})

	p.Schedule(record(30, "l1"))
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1 after Close", store.Writes())
	}

	p.Schedule(record(90, "l1"))
	if p.Pending() {
		t.Error("Schedule() after Close should be ignored")
	}
}

func TestPersister_FlushWithoutPending(t *testing.T) {
	store := progress.NewMemoryStore()
	p := progress.NewPersister(progress.PersisterConfig{Store: store})
	if err := p.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if store.Writes() != 0 {
		t.Errorf("Writes() = %d, want 0", store.Writes())
	}
}
