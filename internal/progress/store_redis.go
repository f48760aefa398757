package progress

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-comply/internal/platform/cache"
)

const (
	fieldWatched  = "watched_sections"
	fieldPassed   = "quiz_passed"
	fieldReports  = "quiz_reports"
	fieldProgress = "progress"
)

// RedisStore keeps each learner's course progress in one Redis hash.
type RedisStore struct {
	cache  *cache.Cache
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store. Keys are "<prefix>:<user>:<course>"
// where prefix is the cache's key prefix.
func NewRedisStore(c *cache.Cache) (*RedisStore, error) {
	if c == nil || c.Client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{cache: c, client: c.Client}, nil
}

func (s *RedisStore) key(userID, courseID string) string {
	return s.cache.Key(userID, courseID)
}

func (s *RedisStore) Read(ctx context.Context, userID, courseID string) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.key(userID, courseID)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("read progress: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}

	progress := 0
	if v, ok := fields[fieldProgress]; ok {
		if progress, err = strconv.Atoi(v); err != nil {
			return Record{}, false, fmt.Errorf("%w: progress %q", ErrInvalidRecord, v)
		}
	}
	doc, err := assembleRecord(
		[]byte(fields[fieldWatched]),
		[]byte(fields[fieldPassed]),
		[]byte(fields[fieldReports]),
		progress,
	)
	if err != nil {
		return Record{}, false, fmt.Errorf("assemble progress: %w", err)
	}
	rec, err := DecodeRecord(doc)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *RedisStore) Write(ctx context.Context, userID, courseID string, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	watched, passed, reports, err := recordParts(rec)
	if err != nil {
		return err
	}

	values := map[string]any{fieldProgress: rec.Progress}
	if watched != nil {
		values[fieldWatched] = string(watched)
	}
	if passed != nil {
		values[fieldPassed] = string(passed)
	}
	if reports != nil {
		values[fieldReports] = string(reports)
	}

	if err := s.client.HSet(ctx, s.key(userID, courseID), values).Err(); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}
