package app

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultReentryDelay is how long to wait before re-requesting fullscreen after an exit
	DefaultReentryDelay = 1 * time.Second

	// DefaultExitThreshold is the exit count that triggers the escalation warning
	DefaultExitThreshold = 3
)

// DefaultFullscreenMethods are the request variants tried in order
var DefaultFullscreenMethods = []string{
	"requestFullscreen",
	"webkitRequestFullscreen",
	"mozRequestFullScreen",
	"msRequestFullscreen",
}

// FullscreenPlatform issues fullscreen requests on the exam container
type FullscreenPlatform interface {
	RequestFullscreen(ctx context.Context, method string) error
	ExitFullscreen(ctx context.Context) error
}

// FullscreenController requests and exits fullscreen on a best-effort basis
// and derives isFullscreen from platform change notifications
type FullscreenController struct {
	platform     FullscreenPlatform
	methods      []string
	logger       *slog.Logger
	isFullscreen bool
}

// NewFullscreenController creates a controller; a nil platform makes every request a logged no-op
func NewFullscreenController(platform FullscreenPlatform, methods []string, logger *slog.Logger) *FullscreenController {
	if len(methods) == 0 {
		methods = DefaultFullscreenMethods
	}
	return &FullscreenController{
		platform: platform,
		methods:  methods,
		logger:   logger,
	}
}

// Enter tries each request method until one is accepted. Failures are
// logged, never returned; the result only says whether any method was accepted.
func (c *FullscreenController) Enter(ctx context.Context) bool {
	if c.platform == nil {
		c.logger.Warn("fullscreen unavailable: no platform")
		return false
	}

	for _, method := range c.methods {
		err := c.platform.RequestFullscreen(ctx, method)
		if err == nil {
			return true
		}
		c.logger.Debug("fullscreen request rejected", "method", method, "error", err)
	}

	c.logger.Warn("fullscreen request failed for every method")
	return false
}

// Exit leaves fullscreen if the platform last reported fullscreen
func (c *FullscreenController) Exit(ctx context.Context) {
	if c.platform == nil || !c.isFullscreen {
		return
	}
	if err := c.platform.ExitFullscreen(ctx); err != nil {
		c.logger.Warn("fullscreen exit failed", "error", err)
	}
}

// Observe applies a fullscreen-change notification and reports whether it
// was a fullscreen to non-fullscreen edge. Repeated reports of an unchanged
// state are not edges.
func (c *FullscreenController) Observe(fullscreen bool) bool {
	exited := c.isFullscreen && !fullscreen
	c.isFullscreen = fullscreen
	return exited
}

// IsFullscreen returns the last observed fullscreen state
func (c *FullscreenController) IsFullscreen() bool {
	return c.isFullscreen
}
