package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"examguard/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider hands out subscriptions and lets tests drive the handler
type fakeProvider struct {
	mu       sync.Mutex
	startErr error
	handler  FaceHandler
	starts   int
	stops    int
}

func (p *fakeProvider) Start(ctx context.Context, source string, handler FaceHandler) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	p.starts++
	p.handler = handler
	return &fakeSubscription{provider: p}, nil
}

func (p *fakeProvider) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

type fakeSubscription struct {
	provider *fakeProvider
	once     sync.Once
}

func (s *fakeSubscription) Stop() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.stops++
		s.provider.mu.Unlock()
	})
}

// fakePlatform records fullscreen requests; failing methods are rejected
type fakePlatform struct {
	mu       sync.Mutex
	failing  map[string]bool
	failAll  bool
	requests []string
	exits    int
}

func (p *fakePlatform) RequestFullscreen(ctx context.Context, method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, method)
	if p.failAll || p.failing[method] {
		return errors.New("fullscreen denied")
	}
	return nil
}

func (p *fakePlatform) ExitFullscreen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exits++
	return nil
}

func (p *fakePlatform) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// recordingSink stores appended submissions
type recordingSink struct {
	mu    sync.Mutex
	err   error
	saved []domain.SubmissionInput
}

func (s *recordingSink) Append(ctx context.Context, in domain.SubmissionInput) (*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.saved = append(s.saved, in)
	return domain.NewSubmission("sub-1", time.Now(), in), nil
}

func (s *recordingSink) submissions() []domain.SubmissionInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SubmissionInput, len(s.saved))
	copy(out, s.saved)
	return out
}

// recordingClient captures broadcast events
type recordingClient struct {
	mu     sync.Mutex
	events []*domain.ExamEvent
}

func (c *recordingClient) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event, ok := message.(*domain.ExamEvent); ok {
		c.events = append(c.events, event)
	}
	return nil
}

func (c *recordingClient) GetClientID() string { return "client-1" }

func (c *recordingClient) Close() error { return nil }

func (c *recordingClient) count(eventType domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (c *recordingClient) notices(level domain.NoticeLevel) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		if p, ok := e.Payload.(*domain.NoticePayload); ok && p.Level == level {
			out = append(out, p.Message)
		}
	}
	return out
}

func (c *recordingClient) violations() []*domain.ViolationPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.ViolationPayload
	for _, e := range c.events {
		if p, ok := e.Payload.(*domain.ViolationPayload); ok {
			out = append(out, p)
		}
	}
	return out
}

// waitFor blocks until at least n events of the given type were delivered
func (c *recordingClient) waitFor(t *testing.T, eventType domain.EventType, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.count(eventType) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

// deferred collects scheduled functions so tests decide when they run
type deferred struct {
	mu    sync.Mutex
	funcs []func()
}

func (d *deferred) schedule(_ time.Duration, f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.funcs = append(d.funcs, f)
}

func (d *deferred) runAll() {
	d.mu.Lock()
	funcs := d.funcs
	d.funcs = nil
	d.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

func (d *deferred) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.funcs)
}

type harness struct {
	session  *ExamSession
	provider *fakeProvider
	platform *fakePlatform
	sink     *recordingSink
	client   *recordingClient
	deferred *deferred
}

func newHarness(t *testing.T, settings SessionSettings) *harness {
	t.Helper()

	if settings.TickInterval == 0 {
		settings.TickInterval = time.Hour
	}

	h := &harness{
		provider: &fakeProvider{},
		platform: &fakePlatform{},
		sink:     &recordingSink{},
		client:   &recordingClient{},
		deferred: &deferred{},
	}

	assembler := NewAssembler(h.sink, testLogger())
	caps := Capabilities{Fullscreen: h.platform, Faces: h.provider, VideoSource: "user"}
	h.session = NewExamSession("session-1", domain.DefaultQuestionBank(), caps, assembler, settings, testLogger())
	h.session.afterFunc = h.deferred.schedule
	h.session.RegisterClient(h.client)

	t.Cleanup(func() {
		h.session.Close()
		assembler.Wait()
	})

	return h
}

func defaultTestSettings() SessionSettings {
	settings := DefaultSessionSettings()
	settings.TickInterval = time.Hour
	return settings
}

// startExam drives the session from Idle to InProgress in fullscreen
func (h *harness) startExam(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Prepare())
	require.NoError(t, h.session.Identify("Ada"))
	h.session.OnFaceReady()
	require.Equal(t, domain.StateReady, h.session.State())
	require.NoError(t, h.session.Start())
	h.session.OnFullscreenChange(true)
	require.Equal(t, domain.StateInProgress, h.session.State())
}
