// Package store persists exam submissions. Submissions are append-only,
// keyed by a server-generated ID, and listed newest first.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"examguard/internal/domain"
)

// Supported drivers
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
)

// Store is the persisted submission collection
type Store interface {
	// Append validates and persists a submission, assigning its ID and timestamp
	Append(ctx context.Context, in domain.SubmissionInput) (*domain.Submission, error)
	// List returns every submission, most recently submitted first
	List(ctx context.Context) ([]*domain.Submission, error)
	Close() error
}

// Open opens the store for the given driver
func Open(driver, path string, logger *slog.Logger) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(path, logger)
	case DriverJSON:
		return OpenJSON(path, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// stamper assigns identity and server time to new submissions
type stamper struct {
	newID func() string
	now   func() time.Time
}

func defaultStamper() stamper {
	return stamper{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

func (s stamper) stamp(in domain.SubmissionInput) (*domain.Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return domain.NewSubmission(s.newID(), s.now(), in), nil
}
