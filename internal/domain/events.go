package domain

import (
	"fmt"
	"time"
)

// EventType represents the type of exam event
type EventType string

const (
	EventStateChanged EventType = "STATE_CHANGED"
	EventNotice       EventType = "NOTICE"
	EventViolation    EventType = "VIOLATION"
	EventTick         EventType = "TICK"
	EventNavigated    EventType = "NAVIGATED"
	EventAnswered     EventType = "ANSWERED"
	EventCompleted    EventType = "COMPLETED"
)

// NoticeLevel grades user-visible notices
type NoticeLevel string

const (
	NoticeInfo       NoticeLevel = "INFO"
	NoticeWarning    NoticeLevel = "WARNING"
	NoticeEscalation NoticeLevel = "ESCALATION"
)

// ExamEvent represents something the student's tab should learn about
type ExamEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new exam event
func NewEvent(eventType EventType, sessionID string, payload interface{}) *ExamEvent {
	return &ExamEvent{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// SnapshotPayload is the full client-visible state of a session
type SnapshotPayload struct {
	SessionID            string         `json:"sessionId"`
	State                State          `json:"state"`
	StudentName          string         `json:"studentName,omitempty"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	TotalQuestions       int            `json:"totalQuestions"`
	AnsweredCount        int            `json:"answeredCount"`
	Answers              map[int]string `json:"answers"`
	RemainingSeconds     int            `json:"remainingSeconds"`
	RemainingFormatted   string         `json:"remainingFormatted"`
	WarningCount         int            `json:"warningCount"`
	FullscreenExitCount  int            `json:"fullscreenExitCount"`
	Fullscreen           bool           `json:"fullscreen"`
	CameraReady          bool           `json:"cameraReady"`
}

// NoticePayload is a user-visible warning or prompt
type NoticePayload struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// ViolationPayload is sent for every recorded violation
type ViolationPayload struct {
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	WarningCount int       `json:"warningCount"`
	// Hash is this entry's link in the violation chain
	Hash string `json:"hash"`
}

// TickPayload is sent every second while the exam runs
type TickPayload struct {
	RemainingSeconds   int    `json:"remainingSeconds"`
	RemainingFormatted string `json:"remainingFormatted"`
	Fullscreen         bool   `json:"fullscreen"`
}

// NavigatedPayload is sent when the current question changes
type NavigatedPayload struct {
	CurrentQuestionIndex int `json:"currentQuestionIndex"`
}

// AnsweredPayload is sent when an answer is recorded
type AnsweredPayload struct {
	QuestionIndex  int    `json:"questionIndex"`
	Choice         string `json:"choice"`
	AnsweredCount  int    `json:"answeredCount"`
	TotalQuestions int    `json:"totalQuestions"`
}

// CompletedPayload is sent once when the session completes
type CompletedPayload struct {
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	WarningCount   int              `json:"warningCount"`
	Reason         CompletionReason `json:"reason"`
}

// FormatRemaining renders seconds as MM:SS
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
