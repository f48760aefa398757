package progress

import (
	"context"
	"sync"
	"time"
)

const dbTimeout = 5 * time.Second

// Store persists progress records per learner and course.
type Store interface {
	// Read returns the stored record, or false when none exists.
	Read(ctx context.Context, userID, courseID string) (Record, bool, error)
	// Write upserts rec. Empty maps in rec leave stored maps untouched.
	Write(ctx context.Context, userID, courseID string, rec Record) error
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	writes  int

	// ReadErr and WriteErr, when set, are returned by Read and Write.
	ReadErr  error
	WriteErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Read(_ context.Context, userID, courseID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return Record{}, false, s.ReadErr
	}
	rec, ok := s.records[storeKey(userID, courseID)]
	if !ok {
		return Record{}, false, nil
	}
	return FromRecord(rec).Record(), true, nil
}

func (s *MemoryStore) Write(_ context.Context, userID, courseID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}
	key := storeKey(userID, courseID)
	s.records[key] = merge(s.records[key], FromRecord(rec).Record())
	s.writes++
	return nil
}

// SetWriteErr changes the write error under the store's lock.
func (s *MemoryStore) SetWriteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WriteErr = err
}

// Writes returns the number of successful writes.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func storeKey(userID, courseID string) string {
	return userID + ":" + courseID
}
