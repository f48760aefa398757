package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL-backed Store. It expects the
// course_progress table created by database.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Read(ctx context.Context, userID, courseID string) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var watched, passed, reports []byte
	var progress int
	err := s.pool.QueryRow(ctx,
		`SELECT watched_sections, quiz_passed, quiz_reports, progress
		 FROM course_progress
		 WHERE user_id = $1 AND course_id = $2`,
		userID,
		courseID,
	).Scan(&watched, &passed, &reports, &progress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read progress: %w", err)
	}

	doc, err := assembleRecord(watched, passed, reports, progress)
	if err != nil {
		return Record{}, false, fmt.Errorf("assemble progress: %w", err)
	}
	rec, err := DecodeRecord(doc)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore) Write(ctx context.Context, userID, courseID string, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	watched, passed, reports, err := recordParts(rec)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO course_progress (user_id, course_id, watched_sections, quiz_passed, quiz_reports, progress, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6, NOW())
		 ON CONFLICT (user_id, course_id) DO UPDATE SET
		   watched_sections = COALESCE(EXCLUDED.watched_sections, course_progress.watched_sections),
		   quiz_passed      = COALESCE(EXCLUDED.quiz_passed, course_progress.quiz_passed),
		   quiz_reports     = COALESCE(EXCLUDED.quiz_reports, course_progress.quiz_reports),
		   progress         = EXCLUDED.progress,
		   updated_at       = NOW()`,
		userID,
		courseID,
		nullIfEmpty(watched),
		nullIfEmpty(passed),
		nullIfEmpty(reports),
		rec.Progress,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func nullIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
