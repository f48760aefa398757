package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a single-file Store for local installs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "progress.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS course_progress (
			user_id TEXT NOT NULL,
			course_id TEXT NOT NULL,
			watched_sections TEXT,
			quiz_passed TEXT,
			quiz_reports TEXT,
			progress INTEGER NOT NULL DEFAULT 0,
			updated_at_unix INTEGER NOT NULL,
			PRIMARY KEY (user_id, course_id)
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context, userID, courseID string) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var watched, passed, reports sql.NullString
	var progress int
	err := s.db.QueryRowContext(ctx,
		`SELECT watched_sections, quiz_passed, quiz_reports, progress
		 FROM course_progress
		 WHERE user_id = ? AND course_id = ?`,
		userID,
		courseID,
	).Scan(&watched, &passed, &reports, &progress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read progress: %w", err)
	}

	doc, err := assembleRecord([]byte(watched.String), []byte(passed.String), []byte(reports.String), progress)
	if err != nil {
		return Record{}, false, fmt.Errorf("assemble progress: %w", err)
	}
	rec, err := DecodeRecord(doc)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) Write(ctx context.Context, userID, courseID string, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	watched, passed, reports, err := recordParts(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO course_progress (user_id, course_id, watched_sections, quiz_passed, quiz_reports, progress, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, strftime('%s','now'))
		 ON CONFLICT (user_id, course_id) DO UPDATE SET
		   watched_sections = COALESCE(excluded.watched_sections, course_progress.watched_sections),
		   quiz_passed      = COALESCE(excluded.quiz_passed, course_progress.quiz_passed),
		   quiz_reports     = COALESCE(excluded.quiz_reports, course_progress.quiz_reports),
		   progress         = excluded.progress,
		   updated_at_unix  = excluded.updated_at_unix`,
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
