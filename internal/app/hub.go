package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"examguard/internal/domain"
)

const (
	// DefaultSessionRetention is how long a finished or abandoned session stays in the hub
	DefaultSessionRetention = 2 * time.Hour

	// cleanupInterval is how often the hub sweeps stale sessions
	cleanupInterval = 10 * time.Minute
)

// ExamHub manages all live exam sessions
type ExamHub struct {
	sessions  map[string]*ExamSession
	mu        sync.RWMutex
	questions *domain.QuestionBank
	assembler *Assembler
	settings  SessionSettings
	retention time.Duration
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewExamHub creates a new exam hub
func NewExamHub(questions *domain.QuestionBank, sink SubmissionSink, settings SessionSettings, retention time.Duration, logger *slog.Logger) *ExamHub {
	if retention <= 0 {
		retention = DefaultSessionRetention
	}

	hub := &ExamHub{
		sessions:  make(map[string]*ExamSession),
		questions: questions,
		assembler: NewAssembler(sink, logger),
		settings:  settings,
		retention: retention,
		logger:    logger,
		done:      make(chan struct{}),
	}

	// Start cleanup goroutine
	go hub.cleanupLoop()

	return hub
}

// Questions returns the hub's question bank
func (h *ExamHub) Questions() *domain.QuestionBank {
	return h.questions
}

// CreateSession creates a new idle session bound to the given capabilities
func (h *ExamHub) CreateSession(caps Capabilities) *ExamSession {
	id := uuid.NewString()
	session := NewExamSession(id, h.questions, caps, h.assembler, h.settings, h.logger)

	h.mu.Lock()
	h.sessions[id] = session
	h.mu.Unlock()

	h.logger.Info("exam session created", "sessionID", id)

	return session
}

// GetSession returns a session by ID
func (h *ExamHub) GetSession(id string) (*ExamSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

// DeleteSession removes a session
func (h *ExamHub) DeleteSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if session, ok := h.sessions[id]; ok {
		session.Close()
		delete(h.sessions, id)
		h.logger.Info("exam session deleted", "sessionID", id)
	}
}

// GetSessionCount returns the number of sessions held by the hub
func (h *ExamHub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetInProgressCount returns the number of exams currently running
func (h *ExamHub) GetInProgressCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		if session.State() == domain.StateInProgress {
			total++
		}
	}
	return total
}

// Close shuts down the hub and all sessions, then waits for pending submissions.
// Exams still in progress are completed first so no attempt is lost.
func (h *ExamHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, session := range h.sessions {
			session.Shutdown()
			session.Close()
		}
		h.sessions = make(map[string]*ExamSession)
		h.mu.Unlock()

		h.assembler.Wait()
	})
}

// cleanupLoop periodically cleans up stale sessions
func (h *ExamHub) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.cleanupStaleSessions(time.Now())
		}
	}
}

// cleanupStaleSessions removes completed sessions past retention, and
// abandoned sessions that never started
func (h *ExamHub) cleanupStaleSessions(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	stale := make([]string, 0)
	for id, session := range h.sessions {
		switch session.State() {
		case domain.StateCompleted:
			if now.Sub(session.CompletedAt()) > h.retention {
				stale = append(stale, id)
			}
		case domain.StateInProgress:
			// The deadline completes it
		default:
			if session.ClientCount() == 0 && now.Sub(session.CreatedAt()) > h.retention {
				stale = append(stale, id)
			}
		}
	}

	for _, id := range stale {
		if session, ok := h.sessions[id]; ok {
			session.Close()
			delete(h.sessions, id)
			h.logger.Info("stale exam session cleaned up", "sessionID", id)
		}
	}

	return len(stale)
}
