package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a pending record is written.
const DefaultDebounce = 800 * time.Millisecond

// PersisterConfig holds dependencies for a Persister.
type PersisterConfig struct {
	Store    Store
	UserID   string
	CourseID string
	Delay    time.Duration // trailing debounce (default 800ms)
}

// Persister coalesces progress writes into a single pending slot flushed
// after Delay of quiet. A newer record always replaces the pending one, and
// a write that finishes after a newer one has landed is skipped.
type Persister struct {
	store    Store
	userID   string
	courseID string
	delay    time.Duration

	mu         sync.Mutex
	pending    *Record
	pendingSeq uint64
	seq        uint64
	timer      *time.Timer
	closed     bool

	writeMu     sync.Mutex
	lastWritten uint64
}

// NewPersister creates a persister for one learner and course.
func NewPersister(cfg PersisterConfig) *Persister {
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Persister{
		store:    cfg.Store,
		userID:   cfg.UserID,
		courseID: cfg.CourseID,
		delay:    delay,
	}
}

// Schedule replaces the pending record and restarts the debounce timer.
// It never blocks on the store.
func (p *Persister) Schedule(rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.seq++
	p.pending = &rec
	p.pendingSeq = p.seq

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, p.fire)
}

// Pending reports whether a record is waiting to be written.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Flush writes the pending record now. On failure the record stays pending
// unless a newer one arrived meanwhile.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	rec, seq := p.pending, p.pendingSeq
	p.pending = nil
	p.mu.Unlock()

	if rec == nil {
		return nil
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if seq <= p.lastWritten {
		return nil
	}
	if err := p.store.Write(ctx, p.userID, p.courseID, *rec); err != nil {
		p.mu.Lock()
		if p.pending == nil {
			p.pending = rec
			p.pendingSeq = seq
		}
		p.mu.Unlock()
		return fmt.Errorf("write progress: %w", err)
	}
	p.lastWritten = seq
	return nil
}

// Close cancels the debounce timer and writes whatever is pending.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	return p.Flush(ctx)
}

func (p *Persister) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if err := p.Flush(ctx); err != nil {
		slog.Warn("progress write failed, will retry on next change",
			"user_id", p.userID,
			"course_id", p.courseID,
			"error", err,
		)
		return
	}
	slog.Debug("progress written", "user_id", p.userID, "course_id", p.courseID)
}
