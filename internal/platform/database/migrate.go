package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS course_progress (
		user_id          TEXT NOT NULL,
		course_id        TEXT NOT NULL,
		watched_sections JSONB,
		quiz_passed      JSONB,
		quiz_reports     JSONB,
		progress         INTEGER NOT NULL DEFAULT 0,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, course_id)
	)`,
	`CREATE TABLE IF NOT EXISTS learning_events (
		id          BIGSERIAL PRIMARY KEY,
		session_id  UUID NOT NULL,
		user_id     TEXT NOT NULL,
		course_id   TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		data        JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS learning_events_user_course_idx
		ON learning_events (user_id, course_id, created_at)`,
}

// Migrate creates the tables the service needs. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
