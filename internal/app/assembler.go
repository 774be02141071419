package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"examguard/internal/domain"
)

// DefaultHandoffTimeout bounds one persistence attempt
const DefaultHandoffTimeout = 10 * time.Second

// SubmissionSink is the persistence store's append operation
type SubmissionSink interface {
	Append(ctx context.Context, in domain.SubmissionInput) (*domain.Submission, error)
}

// Assembler scores a completed session, builds its SubmissionRecord and
// hands it to the store without blocking the caller
type Assembler struct {
	sink    SubmissionSink
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewAssembler creates an assembler; a nil sink keeps records local
func NewAssembler(sink SubmissionSink, logger *slog.Logger) *Assembler {
	return &Assembler{
		sink:    sink,
		timeout: DefaultHandoffTimeout,
		logger:  logger,
	}
}

// Assemble computes the score over the canonical question list and freezes
// the session's outcome
func (a *Assembler) Assemble(session *domain.Session, questions *domain.QuestionBank, violations *domain.ViolationLog, at time.Time) domain.SubmissionRecord {
	answers := session.FrozenAnswers()
	entries := violations.Entries()

	if err := domain.VerifyChain(entries); err != nil {
		a.logger.Error("violation log failed verification", "sessionID", session.ID, "error", err)
	}

	return domain.SubmissionRecord{
		SessionID:           session.ID,
		StudentName:         session.StudentName,
		Score:               questions.Score(answers),
		TotalQuestions:      questions.Len(),
		Violations:          entries,
		WarningCount:        len(entries),
		LogHash:             violations.Head(),
		Answers:             answers,
		FullscreenExitCount: session.FullscreenExitCount,
		Reason:              session.Reason,
		SubmittedAt:         at,
	}
}

// Handoff persists the record in the background. Failures are logged and not retried.
func (a *Assembler) Handoff(record domain.SubmissionRecord) {
	if a.sink == nil {
		a.logger.Warn("no submission store configured, keeping record local", "sessionID", record.SessionID)
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		saved, err := a.sink.Append(ctx, record.Input())
		if err != nil {
			a.logger.Error("failed to persist submission",
				"sessionID", record.SessionID,
				"studentName", record.StudentName,
				"error", err,
			)
			return
		}

		a.logger.Info("submission persisted",
			"sessionID", record.SessionID,
			"submissionID", saved.ID,
			"score", record.Score,
			"totalQuestions", record.TotalQuestions,
		)
	}()
}

// Wait blocks until every pending handoff has finished
func (a *Assembler) Wait() {
	a.wg.Wait()
}
