package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"examguard/internal/domain"
)

// DefaultFacePollInterval is how often a provider reports a face signal
const DefaultFacePollInterval = 2 * time.Second

// FaceHandler receives what a FaceSignalProvider observes
type FaceHandler interface {
	OnFaceSignal(signal domain.FaceSignal)
	OnFaceReady()
}

// Subscription is a running face signal feed. Stop releases the camera and
// must be safe to call more than once.
type Subscription interface {
	Stop()
}

// FaceSignalProvider is the external face detection capability. Start
// acquires the video source, reports OnFaceReady once after the first
// completed detection cycle, then a FaceSignal every poll interval.
type FaceSignalProvider interface {
	Start(ctx context.Context, source string, handler FaceHandler) (Subscription, error)
}

// Camera is an exclusively owned video source
type Camera interface {
	Release() error
}

// FaceDetector runs one detection cycle and returns the number of faces seen
type FaceDetector interface {
	Open(ctx context.Context, source string) (Camera, error)
	Detect(ctx context.Context) (int, error)
}

// PollingProvider turns a FaceDetector into a FaceSignalProvider by polling it
// on a fixed interval
type PollingProvider struct {
	detector FaceDetector
	interval time.Duration
	logger   *slog.Logger
}

// NewPollingProvider creates a provider around detector
func NewPollingProvider(detector FaceDetector, interval time.Duration, logger *slog.Logger) *PollingProvider {
	if interval <= 0 {
		interval = DefaultFacePollInterval
	}
	return &PollingProvider{
		detector: detector,
		interval: interval,
		logger:   logger,
	}
}

// Start opens the camera and begins polling
func (p *PollingProvider) Start(ctx context.Context, source string, handler FaceHandler) (Subscription, error) {
	camera, err := p.detector.Open(ctx, source)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &pollingSubscription{
		camera: camera,
		cancel: cancel,
		logger: p.logger,
	}

	go sub.run(ctx, p.detector, p.interval, handler)

	return sub, nil
}

type pollingSubscription struct {
	camera Camera
	cancel context.CancelFunc
	once   sync.Once
	logger *slog.Logger
}

// run polls the detector; the first successful cycle also signals readiness
func (s *pollingSubscription) run(ctx context.Context, detector FaceDetector, interval time.Duration, handler FaceHandler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ready := false
	check := func() {
		count, err := detector.Detect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("face detection cycle failed", "error", err)
			}
			return
		}
		// Stop may have landed while Detect was in flight
		if ctx.Err() != nil {
			return
		}
		if !ready {
			ready = true
			handler.OnFaceReady()
		}
		handler.OnFaceSignal(domain.NewFaceSignal(count))
	}

	// Initial check
	check()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Stop cancels polling and releases the camera exactly once
func (s *pollingSubscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		if err := s.camera.Release(); err != nil {
			s.logger.Warn("failed to release camera", "error", err)
		}
	})
}
