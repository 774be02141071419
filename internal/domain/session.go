package domain

import (
	"strings"
	"time"
)

// CompletionReason records which path drove a session to StateCompleted
type CompletionReason string

const (
	ReasonDeadline  CompletionReason = "DEADLINE"
	ReasonSubmitted CompletionReason = "SUBMITTED"
	ReasonEnded     CompletionReason = "ENDED"
	ReasonShutdown  CompletionReason = "SHUTDOWN"
)

// Session represents one student's single exam attempt
type Session struct {
	ID                   string           `json:"id"`
	State                State            `json:"state"`
	StudentName          string           `json:"studentName"`
	CurrentQuestionIndex int              `json:"currentQuestionIndex"`
	Answers              map[int]string   `json:"answers"`
	FullscreenExitCount  int              `json:"fullscreenExitCount"`
	CreatedAt            time.Time        `json:"createdAt"`
	StartedAt            time.Time        `json:"startedAt,omitempty"`
	DeadlineAt           time.Time        `json:"deadlineAt,omitempty"`
	CompletedAt          time.Time        `json:"completedAt,omitempty"`
	Reason               CompletionReason `json:"reason,omitempty"`
}

// NewSession creates a new idle session with the given ID
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateIdle,
		Answers:   make(map[int]string),
		CreatedAt: now,
	}
}

// Transition advances the session to the target state
func (s *Session) Transition(target State) error {
	if !s.State.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	s.State = target
	return nil
}

// SetStudentName captures the student's identity
func (s *Session) SetStudentName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrStudentNameRequired
	}
	s.StudentName = name
	return nil
}

// HasIdentity returns true once a student name has been captured
func (s *Session) HasIdentity() bool {
	return s.StudentName != ""
}

// Begin moves the session to StateInProgress and fixes its deadline
func (s *Session) Begin(now time.Time, duration time.Duration) error {
	if err := s.Transition(StateInProgress); err != nil {
		return err
	}
	s.StartedAt = now
	s.DeadlineAt = now.Add(duration)
	return nil
}

// Complete moves the session to StateCompleted
func (s *Session) Complete(now time.Time, reason CompletionReason) error {
	if err := s.Transition(StateCompleted); err != nil {
		return err
	}
	s.CompletedAt = now
	s.Reason = reason
	return nil
}

// SelectAnswer records a choice for a question, replacing any earlier one
func (s *Session) SelectAnswer(bank *QuestionBank, questionIndex int, choice string) error {
	if s.State != StateInProgress {
		return ErrInvalidState
	}

	question, ok := bank.Question(questionIndex)
	if !ok {
		return ErrQuestionOutOfRange
	}
	if !question.HasOption(choice) {
		return ErrInvalidChoice
	}

	s.Answers[questionIndex] = choice
	return nil
}

// Next moves to the following question; it is a no-op on the last one
func (s *Session) Next(total int) bool {
	if s.CurrentQuestionIndex >= total-1 {
		return false
	}
	s.CurrentQuestionIndex++
	return true
}

// Previous moves to the preceding question; it is a no-op on the first one
func (s *Session) Previous() bool {
	if s.CurrentQuestionIndex <= 0 {
		return false
	}
	s.CurrentQuestionIndex--
	return true
}

// AnsweredCount returns how many questions have an answer
func (s *Session) AnsweredCount() int {
	return len(s.Answers)
}

// FrozenAnswers returns a copy of the answers that later mutation cannot reach
func (s *Session) FrozenAnswers() map[int]string {
	answers := make(map[int]string, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	return answers
}
