package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullscreenController_ObserveEdges(t *testing.T) {
	c := NewFullscreenController(&fakePlatform{}, nil, testLogger())

	assert.False(t, c.Observe(false), "never fullscreen")
	assert.False(t, c.Observe(true))
	assert.True(t, c.IsFullscreen())
	assert.True(t, c.Observe(false))
	assert.False(t, c.Observe(false), "unchanged state is not an edge")
}

func TestFullscreenController_EnterTriesMethodsInOrder(t *testing.T) {
	platform := &fakePlatform{failing: map[string]bool{"requestFullscreen": true, "webkitRequestFullscreen": true}}
	c := NewFullscreenController(platform, nil, testLogger())

	assert.True(t, c.Enter(context.Background()))
	assert.Equal(t, []string{"requestFullscreen", "webkitRequestFullscreen", "mozRequestFullScreen"}, platform.requests)
}

func TestFullscreenController_EnterFailureIsNotAnError(t *testing.T) {
	platform := &fakePlatform{failAll: true}
	c := NewFullscreenController(platform, []string{"a", "b"}, testLogger())

	assert.False(t, c.Enter(context.Background()))
	assert.Equal(t, []string{"a", "b"}, platform.requests)
	assert.False(t, c.IsFullscreen())
}

func TestFullscreenController_NilPlatform(t *testing.T) {
	c := NewFullscreenController(nil, nil, testLogger())

	assert.False(t, c.Enter(context.Background()))
	c.Observe(true)
	c.Exit(context.Background())
}

func TestFullscreenController_ExitOnlyWhenFullscreen(t *testing.T) {
	platform := &fakePlatform{}
	c := NewFullscreenController(platform, nil, testLogger())

	c.Exit(context.Background())
	assert.Equal(t, 0, platform.exits)

	c.Observe(true)
	c.Exit(context.Background())
	c.Observe(false)
	c.Exit(context.Background())
	assert.Equal(t, 1, platform.exits)
}
