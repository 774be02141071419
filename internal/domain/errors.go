package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound     = errors.New("exam session not found")
	ErrInvalidState        = errors.New("invalid action for current session state")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrNotReady            = errors.New("session is not ready to start")
	ErrStudentNameRequired = errors.New("studentName is required")
	ErrQuestionOutOfRange  = errors.New("question index out of range")
	ErrInvalidChoice       = errors.New("choice is not one of the question options")
	ErrCameraUnavailable   = errors.New("camera unavailable")
	ErrEmptyQuestionBank   = errors.New("question bank is empty")
	ErrInvalidQuestion     = errors.New("invalid question")
	ErrInvalidSubmission   = errors.New("invalid submission payload")
	ErrBrokenChain         = errors.New("violation log hash chain is broken")
)
