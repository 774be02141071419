package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"examguard/internal/domain"
)

// Schema for the submission store.
const schema = `
CREATE TABLE IF NOT EXISTS submissions (
    seq               INTEGER PRIMARY KEY AUTOINCREMENT,
    id                TEXT NOT NULL UNIQUE,
    timestamp_iso     TEXT NOT NULL,
    student_name      TEXT NOT NULL,
    score             INTEGER NOT NULL,
    total_questions   INTEGER NOT NULL,
    cheating_logs     TEXT NOT NULL,
    warning_count     INTEGER NOT NULL,
    answers           TEXT NOT NULL,
    fullscreen_exits  INTEGER NOT NULL,
    log_hash          TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore keeps submissions in a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	stamp  stamper
	logger *slog.Logger
}

// OpenSQLite opens or creates the SQLite database at the given path and applies the schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := addLogHashColumn(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("submission store opened", "driver", DriverSQLite, "path", path)

	return &SQLiteStore{db: db, stamp: defaultStamper(), logger: logger}, nil
}

// addLogHashColumn upgrades databases created before log_hash existed
func addLogHashColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('submissions') WHERE name = 'log_hash'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE submissions ADD COLUMN log_hash TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("add log_hash column: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append inserts a submission in a single statement, so a failure persists nothing.
func (s *SQLiteStore) Append(ctx context.Context, in domain.SubmissionInput) (*domain.Submission, error) {
	sub, err := s.stamp.stamp(in)
	if err != nil {
		return nil, err
	}

	logs, err := json.Marshal(sub.CheatingLogs)
	if err != nil {
		return nil, fmt.Errorf("encode cheating logs: %w", err)
	}
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, timestamp_iso, student_name, score, total_questions, cheating_logs, warning_count, answers, fullscreen_exits, log_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.TimestampISO, sub.StudentName, sub.Score, sub.TotalQuestions, string(logs), sub.WarningCount, string(answers), sub.FullscreenExits, sub.LogHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	return sub, nil
}

// List returns all submissions, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp_iso, student_name, score, total_questions, cheating_logs, warning_count, answers, fullscreen_exits, log_hash
		FROM submissions ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]*domain.Submission, 0)
	for rows.Next() {
		var sub domain.Submission
		var logs, answers string

		if err := rows.Scan(&sub.ID, &sub.TimestampISO, &sub.StudentName, &sub.Score, &sub.TotalQuestions, &logs, &sub.WarningCount, &answers, &sub.FullscreenExits, &sub.LogHash); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal([]byte(logs), &sub.CheatingLogs); err != nil {
			return nil, fmt.Errorf("decode cheating logs for %s: %w", sub.ID, err)
		}
		if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
			return nil, fmt.Errorf("decode answers for %s: %w", sub.ID, err)
		}

		submissions = append(submissions, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return submissions, nil
}
