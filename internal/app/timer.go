package app

import (
	"sync"
	"time"
)

// DefaultExamDuration is the configured exam length
const DefaultExamDuration = 1800 * time.Second

// ExamTimer counts down whole seconds from a fixed duration. The countdown
// is driven by Decrement; Start only supplies the once-per-second heartbeat.
type ExamTimer struct {
	remaining int
	interval  time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// NewExamTimer creates a stopped timer; interval defaults to one second
func NewExamTimer(duration, interval time.Duration) *ExamTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &ExamTimer{
		remaining: int(duration / time.Second),
		interval:  interval,
	}
}

// Start calls onTick once per interval until Stop. It may be started only once.
func (t *ExamTimer) Start(onTick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil || t.stopped {
		return
	}
	t.stop = make(chan struct{})
	go t.run(t.stop, onTick)
}

func (t *ExamTimer) run(stop <-chan struct{}, onTick func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			onTick()
		}
	}
}

// Stop ends the heartbeat; calling it again is a no-op
func (t *ExamTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	if t.stop != nil {
		close(t.stop)
	}
}

// Decrement consumes one second and reports whether the deadline was reached
func (t *ExamTimer) Decrement() (remaining int, expired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.remaining <= 0 {
		return t.remaining, false
	}
	t.remaining--
	return t.remaining, t.remaining == 0
}

// Remaining returns the seconds left
func (t *ExamTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether the heartbeat is active
func (t *ExamTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil && !t.stopped
}
