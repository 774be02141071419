package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"examguard/internal/domain"
)

// databaseFile is the on-disk layout of the JSON store
type databaseFile struct {
	Submissions []*domain.Submission `json:"submissions"`
}

// JSONStore keeps submissions in a single JSON document, newest first
type JSONStore struct {
	path   string
	mu     sync.Mutex
	stamp  stamper
	logger *slog.Logger
}

// OpenJSON creates the data file if it is missing
func OpenJSON(path string, logger *slog.Logger) (*JSONStore, error) {
	s := &JSONStore{path: path, stamp: defaultStamper(), logger: logger}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(&databaseFile{Submissions: []*domain.Submission{}}); err != nil {
			return nil, err
		}
	}

	logger.Info("submission store opened", "driver", DriverJSON, "path", path)

	return s, nil
}

// Close is a no-op; every write is flushed before Append returns
func (s *JSONStore) Close() error {
	return nil
}

// Append prepends a submission and rewrites the file atomically
func (s *JSONStore) Append(ctx context.Context, in domain.SubmissionInput) (*domain.Submission, error) {
	sub, err := s.stamp.stamp(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return nil, err
	}

	db.Submissions = append([]*domain.Submission{sub}, db.Submissions...)
	if err := s.write(db); err != nil {
		return nil, err
	}

	return sub, nil
}

// List returns all submissions, newest first
func (s *JSONStore) List(ctx context.Context) ([]*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return nil, err
	}
	return db.Submissions, nil
}

// read loads the file; an unparsable file reads as empty
func (s *JSONStore) read() (*databaseFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &databaseFile{Submissions: []*domain.Submission{}}, nil
		}
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var db databaseFile
	if err := json.Unmarshal(data, &db); err != nil {
		s.logger.Warn("data file is not valid JSON, treating as empty", "path", s.path, "error", err)
		return &databaseFile{Submissions: []*domain.Submission{}}, nil
	}
	if db.Submissions == nil {
		db.Submissions = []*domain.Submission{}
	}
	return &db, nil
}

// write replaces the file via a temp file and rename
func (s *JSONStore) write(db *databaseFile) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".exams-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}
