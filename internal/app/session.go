package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"examguard/internal/domain"
)

// Notices shown to the student alongside violations and lifecycle problems
const (
	noticeCameraUnavailable     = "Failed to access webcam. Please ensure your camera is connected and you have given permission to use it."
	noticeFullscreenUnavailable = "Fullscreen mode is unavailable. Please switch to fullscreen to continue the exam."
	noticeNoFace                = "Your face must be visible during the exam."
	noticeMultipleFacesFmt      = "%d faces detected. Only your face should be visible during the exam."
	noticeFullscreenExit        = "Please stay in fullscreen mode during the exam."
	noticeEscalationFmt         = "You have exited fullscreen %d times. Further exits are reported to the examiner."
	noticeTabSwitch             = "Switching tabs is not allowed during the exam."
	noticeBlur                  = "Keep the exam window focused."
	noticeBlocked               = "This action is not allowed during the exam."

	MsgNoFace          = "No face detected in frame"
	MsgMultipleFaceFmt = "Multiple faces detected in frame (%d faces)"
	MsgFullscreenExit  = "exited fullscreen"
)

// ClientConnection represents a connected exam tab
type ClientConnection interface {
	Send(message interface{}) error
	GetClientID() string
	Close() error
}

// Capabilities are the platform services an exam tab provides to its session
type Capabilities struct {
	Fullscreen  FullscreenPlatform
	Faces       FaceSignalProvider
	VideoSource string
}

// SessionSettings holds the fixed rules of an exam attempt
type SessionSettings struct {
	Duration          time.Duration
	TickInterval      time.Duration
	ReentryDelay      time.Duration
	ExitThreshold     int
	FullscreenMethods []string
}

// DefaultSessionSettings returns the default exam rules
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		Duration:      DefaultExamDuration,
		TickInterval:  time.Second,
		ReentryDelay:  DefaultReentryDelay,
		ExitThreshold: DefaultExitThreshold,
	}
}

// ExamSession is the integrity monitor for one exam attempt. Every input,
// timer tick and face signal passes through one mutex and checks the
// lifecycle state first, so events arriving after completion change nothing.
type ExamSession struct {
	session    *domain.Session
	violations *domain.ViolationLog
	questions  *domain.QuestionBank
	settings   SessionSettings
	mu         sync.Mutex

	clients   map[string]ClientConnection // clientID -> client
	clientsMu sync.RWMutex
	logger    *slog.Logger

	fullscreen   *FullscreenController
	guard        *InputGuard
	timer        *ExamTimer
	faces        FaceSignalProvider
	videoSource  string
	subscription Subscription
	cameraReady  bool
	assembler    *Assembler
	record       *domain.SubmissionRecord

	now       func() time.Time
	afterFunc func(time.Duration, func())

	ctx    context.Context
	cancel context.CancelFunc

	// Event channel for broadcasting
	events chan *domain.ExamEvent
	done   chan struct{}
}

// NewExamSession creates an idle exam session
func NewExamSession(id string, questions *domain.QuestionBank, caps Capabilities, assembler *Assembler, settings SessionSettings, logger *slog.Logger) *ExamSession {
	logger = logger.With("sessionID", id)
	ctx, cancel := context.WithCancel(context.Background())

	s := &ExamSession{
		session:     domain.NewSession(id, time.Now()),
		violations:  domain.NewViolationLog(),
		questions:   questions,
		settings:    settings,
		clients:     make(map[string]ClientConnection),
		logger:      logger,
		fullscreen:  NewFullscreenController(caps.Fullscreen, settings.FullscreenMethods, logger),
		guard:       NewInputGuard(),
		timer:       NewExamTimer(settings.Duration, settings.TickInterval),
		faces:       caps.Faces,
		videoSource: caps.VideoSource,
		assembler:   assembler,
		now:         time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
		events: make(chan *domain.ExamEvent, 100),
		done:   make(chan struct{}),
	}

	// Start event broadcaster
	go s.eventLoop()

	return s
}

// ID returns the session ID
func (s *ExamSession) ID() string {
	return s.session.ID
}

// CreatedAt returns when the session was created
func (s *ExamSession) CreatedAt() time.Time {
	return s.session.CreatedAt
}

// State returns the current lifecycle state
func (s *ExamSession) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.State
}

// CompletedAt returns when the session completed, zero if it has not
func (s *ExamSession) CompletedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.CompletedAt
}

// WarningCount returns the number of recorded violations
func (s *ExamSession) WarningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations.WarningCount()
}

// Violations returns a copy of the violation log
func (s *ExamSession) Violations() []domain.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations.Entries()
}

// FullscreenExitCount returns how many times the student left fullscreen
func (s *ExamSession) FullscreenExitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.FullscreenExitCount
}

// Record returns the submission record once the session has completed
func (s *ExamSession) Record() (domain.SubmissionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return domain.SubmissionRecord{}, false
	}
	return *s.record, true
}

// Questions returns the student-facing question list
func (s *ExamSession) Questions() []domain.QuestionView {
	return s.questions.Views()
}

// Snapshot returns the client-visible state of the session
func (s *ExamSession) Snapshot() *domain.SnapshotPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ExamSession) snapshotLocked() *domain.SnapshotPayload {
	remaining := s.timer.Remaining()
	return &domain.SnapshotPayload{
		SessionID:            s.session.ID,
		State:                s.session.State,
		StudentName:          s.session.StudentName,
		CurrentQuestionIndex: s.session.CurrentQuestionIndex,
		TotalQuestions:       s.questions.Len(),
		AnsweredCount:        s.session.AnsweredCount(),
		Answers:              s.session.FrozenAnswers(),
		RemainingSeconds:     remaining,
		RemainingFormatted:   domain.FormatRemaining(remaining),
		WarningCount:         s.violations.WarningCount(),
		FullscreenExitCount:  s.session.FullscreenExitCount,
		Fullscreen:           s.fullscreen.IsFullscreen(),
		CameraReady:          s.cameraReady,
	}
}

// RegisterClient registers a client connection for the session
func (s *ExamSession) RegisterClient(client ClientConnection) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.GetClientID()] = client
}

// UnregisterClient removes a client connection
func (s *ExamSession) UnregisterClient(clientID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, clientID)
}

// ClientCount returns the number of connected clients
func (s *ExamSession) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Prepare enters Setup and starts the face signal provider. Calling it again
// in Setup retries a provider that failed to start.
func (s *ExamSession) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.session.State {
	case domain.StateIdle:
		if err := s.session.Transition(domain.StateSetup); err != nil {
			return err
		}
		s.queueStateChanged()
	case domain.StateSetup:
		if s.subscription != nil {
			return nil
		}
	default:
		return domain.ErrInvalidState
	}

	return s.startFacesLocked()
}

// startFacesLocked starts the provider (caller must hold lock)
func (s *ExamSession) startFacesLocked() error {
	if s.faces == nil {
		s.queueNotice(domain.NoticeWarning, noticeCameraUnavailable)
		return domain.ErrCameraUnavailable
	}

	sub, err := s.faces.Start(s.ctx, s.videoSource, s)
	if err != nil {
		s.logger.Warn("face signal provider failed to start", "error", err)
		s.queueNotice(domain.NoticeWarning, noticeCameraUnavailable)
		return fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}

	s.subscription = sub
	return nil
}

// stopFacesLocked stops the provider if it is running (caller must hold lock)
func (s *ExamSession) stopFacesLocked() {
	if s.subscription == nil {
		return
	}
	s.subscription.Stop()
	s.subscription = nil
}

// Identify captures the student's name
func (s *ExamSession) Identify(studentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateIdle && s.session.State != domain.StateSetup {
		return domain.ErrInvalidState
	}
	if err := s.session.SetStudentName(studentName); err != nil {
		return err
	}

	s.tryReadyLocked()
	return nil
}

// OnFaceReady marks the provider's readiness gate as satisfied
func (s *ExamSession) OnFaceReady() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State.IsTerminal() {
		return
	}
	s.cameraReady = true
	s.tryReadyLocked()
}

// OnCameraError reports that the provider lost or never acquired the camera.
// During Setup the feed is dropped so a later Prepare can retry it.
func (s *ExamSession) OnCameraError(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State.IsTerminal() {
		return
	}

	s.logger.Warn("camera error reported", "state", s.session.State, "reason", reason)

	if s.session.State == domain.StateSetup {
		s.stopFacesLocked()
		s.cameraReady = false
	}
	s.queueNotice(domain.NoticeWarning, noticeCameraUnavailable)
}

// tryReadyLocked moves Setup to Ready once both gates are open (caller must hold lock)
func (s *ExamSession) tryReadyLocked() {
	if s.session.State != domain.StateSetup || !s.session.HasIdentity() || !s.cameraReady {
		return
	}
	if err := s.session.Transition(domain.StateReady); err != nil {
		return
	}
	s.queueStateChanged()
}

// Start begins the exam: fullscreen is requested best-effort and the timer
// starts whether or not fullscreen was granted
func (s *ExamSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateReady {
		if s.session.State.IsTerminal() {
			return domain.ErrInvalidState
		}
		return domain.ErrNotReady
	}

	if err := s.session.Begin(s.now(), s.settings.Duration); err != nil {
		return err
	}

	s.guard.Install()
	if !s.fullscreen.Enter(s.ctx) {
		s.queueNotice(domain.NoticeWarning, noticeFullscreenUnavailable)
	}
	s.timer.Start(s.tick)

	s.logger.Info("exam started", "studentName", s.session.StudentName, "deadlineAt", s.session.DeadlineAt)
	s.queueStateChanged()

	return nil
}

// SelectAnswer records a choice for a question; last write wins
func (s *ExamSession) SelectAnswer(questionIndex int, choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.SelectAnswer(s.questions, questionIndex, choice); err != nil {
		return err
	}

	s.queueEvent(domain.NewEvent(domain.EventAnswered, s.session.ID, &domain.AnsweredPayload{
		QuestionIndex:  questionIndex,
		Choice:         choice,
		AnsweredCount:  s.session.AnsweredCount(),
		TotalQuestions: s.questions.Len(),
	}))
	return nil
}

// Next moves to the following question, if any
func (s *ExamSession) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress {
		return
	}
	if s.session.Next(s.questions.Len()) {
		s.queueNavigated()
	}
}

// Previous moves to the preceding question, if any
func (s *ExamSession) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress {
		return
	}
	if s.session.Previous() {
		s.queueNavigated()
	}
}

// Submit completes the exam on the student's request
func (s *ExamSession) Submit() error {
	return s.finish(domain.ReasonSubmitted)
}

// EndExam completes the exam early once the student has confirmed
func (s *ExamSession) EndExam(confirmed bool) error {
	if !confirmed {
		return nil
	}
	return s.finish(domain.ReasonEnded)
}

func (s *ExamSession) finish(reason domain.CompletionReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.session.State {
	case domain.StateCompleted:
		return nil
	case domain.StateInProgress:
		s.completeLocked(reason)
		return nil
	default:
		return domain.ErrInvalidState
	}
}

// tick consumes one second of exam time
func (s *ExamSession) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress {
		return
	}

	remaining, expired := s.timer.Decrement()
	s.queueEvent(domain.NewEvent(domain.EventTick, s.session.ID, &domain.TickPayload{
		RemainingSeconds:   remaining,
		RemainingFormatted: domain.FormatRemaining(remaining),
		Fullscreen:         s.fullscreen.IsFullscreen(),
	}))

	if expired {
		s.completeLocked(domain.ReasonDeadline)
	}
}

// completeLocked is the single path into Completed (caller must hold lock)
func (s *ExamSession) completeLocked(reason domain.CompletionReason) {
	now := s.now()
	if err := s.session.Complete(now, reason); err != nil {
		return
	}

	s.timer.Stop()
	s.stopFacesLocked()
	s.guard.Uninstall()
	s.fullscreen.Exit(s.ctx)

	record := s.assembler.Assemble(s.session, s.questions, s.violations, now)
	s.record = &record

	s.logger.Info("exam completed",
		"reason", reason,
		"score", record.Score,
		"totalQuestions", record.TotalQuestions,
		"warningCount", record.WarningCount,
	)

	s.queueStateChanged()
	s.queueEvent(domain.NewEvent(domain.EventCompleted, s.session.ID, &domain.CompletedPayload{
		Score:          record.Score,
		TotalQuestions: record.TotalQuestions,
		WarningCount:   record.WarningCount,
		Reason:         reason,
	}))

	s.assembler.Handoff(record)
}

// OnFullscreenChange applies a platform fullscreen-change notification
func (s *ExamSession) OnFullscreenChange(fullscreen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State.IsTerminal() {
		return
	}

	exited := s.fullscreen.Observe(fullscreen)
	if !exited || s.session.State != domain.StateInProgress {
		return
	}

	s.session.FullscreenExitCount++
	s.recordLocked(MsgFullscreenExit, noticeFullscreenExit)

	if s.session.FullscreenExitCount == s.settings.ExitThreshold {
		s.queueNotice(domain.NoticeEscalation, fmt.Sprintf(noticeEscalationFmt, s.session.FullscreenExitCount))
	}

	s.afterFunc(s.settings.ReentryDelay, s.reenterFullscreen)
}

// OnFullscreenError handles the tab reporting that a fullscreen request was
// denied. The student is prompted again and another request is scheduled, so
// a refusing tab keeps being asked for as long as the exam runs.
func (s *ExamSession) OnFullscreenError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress || s.fullscreen.IsFullscreen() {
		return
	}

	s.logger.Warn("fullscreen request denied by client")
	s.queueNotice(domain.NoticeWarning, noticeFullscreenUnavailable)
	s.afterFunc(s.settings.ReentryDelay, s.reenterFullscreen)
}

// reenterFullscreen is the deferred one-shot re-entry after an exit
func (s *ExamSession) reenterFullscreen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress || s.fullscreen.IsFullscreen() {
		return
	}
	if !s.fullscreen.Enter(s.ctx) {
		s.queueNotice(domain.NoticeWarning, noticeFullscreenUnavailable)
	}
}

// OnVisibilityChange handles the tab becoming hidden or visible
func (s *ExamSession) OnVisibilityChange(hidden bool) bool {
	return s.guarded(noticeTabSwitch, func() Verdict {
		return s.guard.Visibility(hidden)
	})
}

// OnWindowBlur handles the window losing focus
func (s *ExamSession) OnWindowBlur() bool {
	return s.guarded(noticeBlur, s.guard.Blur)
}

// OnContextMenu handles a context-menu request and reports whether to suppress it
func (s *ExamSession) OnContextMenu() bool {
	return s.guarded(noticeBlocked, s.guard.ContextMenu)
}

// OnBeforeUnload handles an attempt to leave the page and reports whether to suppress it
func (s *ExamSession) OnBeforeUnload() bool {
	return s.guarded(noticeBlocked, s.guard.BeforeUnload)
}

// OnKeyDown handles a keydown and reports whether to suppress it
func (s *ExamSession) OnKeyDown(ev KeyEvent) bool {
	return s.guarded(noticeBlocked, func() Verdict {
		return s.guard.KeyDown(ev, s.fullscreen.IsFullscreen())
	})
}

// guarded runs a guard classification while the exam is in progress
func (s *ExamSession) guarded(notice string, classify func() Verdict) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress {
		return false
	}

	verdict := classify()
	if verdict.Violation != "" {
		s.recordLocked(verdict.Violation, notice)
	}
	return verdict.Suppress
}

// OnFaceSignal reacts to one face-presence observation
func (s *ExamSession) OnFaceSignal(signal domain.FaceSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.State.Monitoring() {
		return
	}

	if !signal.Present {
		s.recordLocked(MsgNoFace, noticeNoFace)
	}
	if signal.MultiplePresent {
		s.recordLocked(fmt.Sprintf(MsgMultipleFaceFmt, signal.Count), fmt.Sprintf(noticeMultipleFacesFmt, signal.Count))
	}
}

// recordLocked appends a violation and warns the student (caller must hold lock)
func (s *ExamSession) recordLocked(message, notice string) {
	v := s.violations.Append(s.now(), message)
	count := s.violations.WarningCount()

	s.logger.Warn("violation recorded", "message", message, "warningCount", count)

	s.queueEvent(domain.NewEvent(domain.EventViolation, s.session.ID, &domain.ViolationPayload{
		Timestamp:    v.Timestamp,
		Message:      v.Message,
		WarningCount: count,
		Hash:         v.Hash,
	}))
	s.queueNotice(domain.NoticeWarning, notice)
}

func (s *ExamSession) queueNotice(level domain.NoticeLevel, message string) {
	s.queueEvent(domain.NewEvent(domain.EventNotice, s.session.ID, &domain.NoticePayload{
		Level:   level,
		Message: message,
	}))
}

func (s *ExamSession) queueStateChanged() {
	s.queueEvent(domain.NewEvent(domain.EventStateChanged, s.session.ID, s.snapshotLocked()))
}

func (s *ExamSession) queueNavigated() {
	s.queueEvent(domain.NewEvent(domain.EventNavigated, s.session.ID, &domain.NavigatedPayload{
		CurrentQuestionIndex: s.session.CurrentQuestionIndex,
	}))
}

// queueEvent adds an event to the broadcast queue
func (s *ExamSession) queueEvent(event *domain.ExamEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// eventLoop processes events and broadcasts to clients
func (s *ExamSession) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to every connected client
func (s *ExamSession) broadcastEvent(event *domain.ExamEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for clientID, client := range s.clients {
		if err := client.Send(event); err != nil {
			s.logger.Debug("failed to send to client", "clientID", clientID, "error", err)
		}
	}
}

// Shutdown completes a running exam because the server is stopping, so the
// attempt is still scored and handed to the store
func (s *ExamSession) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != domain.StateInProgress {
		return
	}
	s.completeLocked(domain.ReasonShutdown)
}

// Close shuts down the session without completing it
func (s *ExamSession) Close() {
	select {
	case <-s.done:
		return // Already closed
	default:
		close(s.done)
	}

	s.mu.Lock()
	s.timer.Stop()
	s.stopFacesLocked()
	s.mu.Unlock()
	s.cancel()

	// Close all client connections
	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[string]ClientConnection)
	s.clientsMu.Unlock()
}
