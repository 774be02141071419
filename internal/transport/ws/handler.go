package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"examguard/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	hub          *app.ExamHub
	pollInterval time.Duration
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewHandler creates a new WebSocket handler. Browsers may connect from the
// server's own origin or from one that allowOrigin accepts.
func NewHandler(hub *app.ExamHub, pollInterval time.Duration, allowOrigin func(origin string) bool, logger *slog.Logger) *Handler {
	return &Handler{
		hub:          hub,
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if sameOrigin(r) {
					return true
				}
				allowed := allowOrigin != nil && allowOrigin(r.Header.Get("Origin"))
				if !allowed {
					logger.Warn("websocket origin rejected", "origin", r.Header.Get("Origin"))
				}
				return allowed
			},
		},
		logger: logger,
	}
}

// sameOrigin accepts requests without an Origin header (non-browser clients)
// and those whose origin host is the host they connected to
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP upgrades the connection and opens a fresh exam session for it.
// Optional query parameters: fullscreen (comma separated request methods the
// tab supports) and video (camera source hint).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var methods []string
	for _, m := range strings.Split(query.Get("fullscreen"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	client := NewClient(conn, clientID, methods, h.pollInterval, h.logger)

	session := h.hub.CreateSession(app.Capabilities{
		Fullscreen:  client,
		Faces:       client,
		VideoSource: query.Get("video"),
	})
	client.Bind(session)
	session.RegisterClient(client)

	h.logger.Info("websocket connected",
		"sessionID", session.ID(),
		"clientID", clientID,
	)

	client.sendConnected()

	// Start the client
	client.Run()
}
