package app

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExamTimer_Decrement(t *testing.T) {
	timer := NewExamTimer(3*time.Second, time.Hour)
	assert.Equal(t, 3, timer.Remaining())

	remaining, expired := timer.Decrement()
	assert.Equal(t, 2, remaining)
	assert.False(t, expired)

	timer.Decrement()
	remaining, expired = timer.Decrement()
	assert.Equal(t, 0, remaining)
	assert.True(t, expired)

	remaining, expired = timer.Decrement()
	assert.Equal(t, 0, remaining)
	assert.False(t, expired, "the deadline fires once")
}

func TestExamTimer_DefaultDuration(t *testing.T) {
	assert.Equal(t, 1800, NewExamTimer(DefaultExamDuration, 0).Remaining())
}

func TestExamTimer_StopIsIdempotentAndFreezes(t *testing.T) {
	timer := NewExamTimer(10*time.Second, time.Hour)
	timer.Start(func() {})
	assert.True(t, timer.Running())

	timer.Stop()
	timer.Stop()
	assert.False(t, timer.Running())

	remaining, expired := timer.Decrement()
	assert.Equal(t, 10, remaining)
	assert.False(t, expired)

	timer.Start(func() {})
	assert.False(t, timer.Running(), "a stopped timer does not restart")
}

func TestExamTimer_Heartbeat(t *testing.T) {
	timer := NewExamTimer(10*time.Second, 5*time.Millisecond)

	var ticks atomic.Int32
	timer.Start(func() { ticks.Add(1) })
	defer timer.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
}
