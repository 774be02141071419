package ws

import (
	"encoding/json"
	"time"

	"examguard/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgPrepare          MessageType = "prepare"
	MsgIdentify         MessageType = "identify"
	MsgStart            MessageType = "start"
	MsgSelectAnswer     MessageType = "select_answer"
	MsgNext             MessageType = "next"
	MsgPrevious         MessageType = "previous"
	MsgSubmit           MessageType = "submit"
	MsgEndExam          MessageType = "end_exam"
	MsgFullscreenChange MessageType = "fullscreen_change"
	MsgFullscreenError  MessageType = "fullscreen_error"
	MsgVisibilityChange MessageType = "visibility_change"
	MsgWindowBlur       MessageType = "window_blur"
	MsgContextMenu      MessageType = "context_menu"
	MsgKeyDown          MessageType = "key_down"
	MsgBeforeUnload     MessageType = "before_unload"
	MsgFaceSignal       MessageType = "face_signal"
	MsgFaceReady        MessageType = "face_ready"
	MsgCameraError      MessageType = "camera_error"
	MsgPing             MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected         MessageType = "connected"
	MsgSnapshot          MessageType = "snapshot"
	MsgNotice            MessageType = "notice"
	MsgViolation         MessageType = "violation"
	MsgTick              MessageType = "tick"
	MsgNavigated         MessageType = "navigated"
	MsgAnswered          MessageType = "answered"
	MsgFullscreenRequest MessageType = "fullscreen_request"
	MsgFullscreenExit    MessageType = "fullscreen_exit"
	MsgSuppress          MessageType = "suppress"
	MsgCameraStart       MessageType = "camera_start"
	MsgCameraStop        MessageType = "camera_stop"
	MsgCompleted         MessageType = "completed"
	MsgError             MessageType = "error"
	MsgPong              MessageType = "pong"
)

// eventMessages maps session events onto the wire
var eventMessages = map[domain.EventType]MessageType{
	domain.EventStateChanged: MsgSnapshot,
	domain.EventNotice:       MsgNotice,
	domain.EventViolation:    MsgViolation,
	domain.EventTick:         MsgTick,
	domain.EventNavigated:    MsgNavigated,
	domain.EventAnswered:     MsgAnswered,
	domain.EventCompleted:    MsgCompleted,
}

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// IdentifyPayload is the payload for identify message
type IdentifyPayload struct {
	StudentName string `json:"studentName"`
}

// SelectAnswerPayload is the payload for select_answer message
type SelectAnswerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Choice        string `json:"choice"`
}

// EndExamPayload is the payload for end_exam message
type EndExamPayload struct {
	Confirmed bool `json:"confirmed"`
}

// FullscreenChangePayload is the payload for fullscreen_change message
type FullscreenChangePayload struct {
	Fullscreen bool `json:"fullscreen"`
}

// FullscreenErrorPayload is the optional payload for fullscreen_error message
type FullscreenErrorPayload struct {
	Message string `json:"message"`
}

// VisibilityChangePayload is the payload for visibility_change message
type VisibilityChangePayload struct {
	Hidden bool `json:"hidden"`
}

// KeyDownPayload is the payload for key_down message
type KeyDownPayload struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
}

// FaceSignalPayload is the payload for face_signal message
type FaceSignalPayload struct {
	Present         bool `json:"present"`
	MultiplePresent bool `json:"multiplePresent"`
	Count           int  `json:"count"`
}

// CameraErrorPayload is the payload for camera_error message
type CameraErrorPayload struct {
	Message string `json:"message"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ClientID  string                  `json:"clientId"`
	Snapshot  *domain.SnapshotPayload `json:"snapshot"`
	Questions []domain.QuestionView   `json:"questions"`
}

// FullscreenRequestPayload is the payload for fullscreen_request message
type FullscreenRequestPayload struct {
	Method string `json:"method"`
}

// SuppressPayload tells the tab to prevent the native action
type SuppressPayload struct {
	Action MessageType `json:"action"`
}

// CameraStartPayload is the payload for camera_start message
type CameraStartPayload struct {
	Source     string `json:"source,omitempty"`
	IntervalMs int64  `json:"intervalMs"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage    = "INVALID_MESSAGE"
	ErrCodeInvalidAction     = "INVALID_ACTION"
	ErrCodeNotReady          = "NOT_READY"
	ErrCodeNameRequired      = "STUDENT_NAME_REQUIRED"
	ErrCodeInvalidAnswer     = "INVALID_ANSWER"
	ErrCodeCameraUnavailable = "CAMERA_UNAVAILABLE"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)
