package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"examguard/internal/app"
	"examguard/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

var (
	errClientClosed      = errors.New("client connection closed")
	errMethodUnsupported = errors.New("fullscreen method not supported by client")
)

// Client is one exam tab. Besides carrying session events it stands in for
// the tab's fullscreen API and camera: requests are forwarded over the socket
// and the tab reports back with fullscreen_change and face_signal messages.
type Client struct {
	conn     *websocket.Conn
	session  *app.ExamSession
	clientID string
	send     chan []byte
	done     chan struct{}
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool

	fullscreenMethods map[string]bool // nil accepts every method
	pollInterval      time.Duration

	feedMu sync.Mutex
	feed   *faceFeed
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, clientID string, fullscreenMethods []string, pollInterval time.Duration, logger *slog.Logger) *Client {
	var methods map[string]bool
	if len(fullscreenMethods) > 0 {
		methods = make(map[string]bool, len(fullscreenMethods))
		for _, m := range fullscreenMethods {
			methods[m] = true
		}
	}
	if pollInterval <= 0 {
		pollInterval = app.DefaultFacePollInterval
	}

	return &Client{
		conn:              conn,
		clientID:          clientID,
		send:              make(chan []byte, sendBufferSize),
		done:              make(chan struct{}),
		logger:            logger.With("clientID", clientID),
		fullscreenMethods: methods,
		pollInterval:      pollInterval,
	}
}

// Bind attaches the session this client drives
func (c *Client) Bind(session *app.ExamSession) {
	c.session = session
}

// GetClientID implements app.ClientConnection interface
func (c *Client) GetClientID() string {
	return c.clientID
}

// Send implements app.ClientConnection interface. Session events are
// translated to their wire message; anything else is sent as is.
func (c *Client) Send(message interface{}) error {
	if event, ok := message.(*domain.ExamEvent); ok {
		msgType, known := eventMessages[event.Type]
		if !known {
			return nil
		}
		message = NewServerMessage(msgType, event.Payload)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped")
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// RequestFullscreen implements app.FullscreenPlatform. Acceptance only means
// the tab was asked; the tab confirms with fullscreen_change.
func (c *Client) RequestFullscreen(ctx context.Context, method string) error {
	if c.fullscreenMethods != nil && !c.fullscreenMethods[method] {
		return errMethodUnsupported
	}
	return c.Send(NewServerMessage(MsgFullscreenRequest, &FullscreenRequestPayload{Method: method}))
}

// ExitFullscreen implements app.FullscreenPlatform
func (c *Client) ExitFullscreen(ctx context.Context) error {
	return c.Send(NewServerMessage(MsgFullscreenExit, nil))
}

// Start implements app.FaceSignalProvider by asking the tab to open its
// camera and report detections every poll interval
func (c *Client) Start(ctx context.Context, source string, handler app.FaceHandler) (app.Subscription, error) {
	feed := &faceFeed{client: c, handler: handler}

	c.feedMu.Lock()
	previous := c.feed
	c.feed = feed
	c.feedMu.Unlock()

	if previous != nil {
		previous.Stop()
	}

	err := c.Send(NewServerMessage(MsgCameraStart, &CameraStartPayload{
		Source:     source,
		IntervalMs: c.pollInterval.Milliseconds(),
	}))
	if err != nil {
		feed.Stop()
		return nil, err
	}

	return feed, nil
}

// activeFeed returns the running face feed, if any
func (c *Client) activeFeed() *faceFeed {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()
	return c.feed
}

// faceFeed is the subscription handed to the session for one camera_start
type faceFeed struct {
	client  *Client
	handler app.FaceHandler
	once    sync.Once
}

// Stop tells the tab to release the camera; later face reports are ignored
func (f *faceFeed) Stop() {
	f.once.Do(func() {
		c := f.client

		c.feedMu.Lock()
		if c.feed == f {
			c.feed = nil
		}
		c.feedMu.Unlock()

		c.Send(NewServerMessage(MsgCameraStop, nil))
	})
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.session.UnregisterClient(c.clientID)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgPrepare:
		c.reply(c.session.Prepare())
	case MsgIdentify:
		var p IdentifyPayload
		if c.decode(msg.Payload, &p) {
			c.reply(c.session.Identify(p.StudentName))
		}
	case MsgStart:
		c.reply(c.session.Start())
	case MsgSelectAnswer:
		var p SelectAnswerPayload
		if c.decode(msg.Payload, &p) {
			c.reply(c.session.SelectAnswer(p.QuestionIndex, p.Choice))
		}
	case MsgNext:
		c.session.Next()
	case MsgPrevious:
		c.session.Previous()
	case MsgSubmit:
		c.reply(c.session.Submit())
	case MsgEndExam:
		var p EndExamPayload
		if c.decode(msg.Payload, &p) {
			c.reply(c.session.EndExam(p.Confirmed))
		}
	case MsgFullscreenChange:
		var p FullscreenChangePayload
		if c.decode(msg.Payload, &p) {
			c.session.OnFullscreenChange(p.Fullscreen)
		}
	case MsgFullscreenError:
		var p FullscreenErrorPayload
		if len(msg.Payload) > 0 {
			_ = json.Unmarshal(msg.Payload, &p)
		}
		c.logger.Debug("fullscreen request denied", "clientID", c.clientID, "message", p.Message)
		c.session.OnFullscreenError()
	case MsgVisibilityChange:
		var p VisibilityChangePayload
		if c.decode(msg.Payload, &p) {
			c.suppressIf(msg.Type, c.session.OnVisibilityChange(p.Hidden))
		}
	case MsgWindowBlur:
		c.suppressIf(msg.Type, c.session.OnWindowBlur())
	case MsgContextMenu:
		c.suppressIf(msg.Type, c.session.OnContextMenu())
	case MsgKeyDown:
		var p KeyDownPayload
		if c.decode(msg.Payload, &p) {
			c.suppressIf(msg.Type, c.session.OnKeyDown(app.KeyEvent{
				Key:   p.Key,
				Ctrl:  p.Ctrl,
				Meta:  p.Meta,
				Alt:   p.Alt,
				Shift: p.Shift,
			}))
		}
	case MsgBeforeUnload:
		c.suppressIf(msg.Type, c.session.OnBeforeUnload())
	case MsgFaceSignal:
		var p FaceSignalPayload
		if c.decode(msg.Payload, &p) {
			if feed := c.activeFeed(); feed != nil {
				feed.handler.OnFaceSignal(domain.FaceSignal{
					Present:         p.Present,
					MultiplePresent: p.MultiplePresent,
					Count:           p.Count,
				})
			}
		}
	case MsgFaceReady:
		if feed := c.activeFeed(); feed != nil {
			feed.handler.OnFaceReady()
		}
	case MsgCameraError:
		var p CameraErrorPayload
		if len(msg.Payload) > 0 {
			_ = json.Unmarshal(msg.Payload, &p)
		}
		c.session.OnCameraError(p.Message)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// decode unmarshals a required payload, replying with an error on failure
func (c *Client) decode(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 {
		c.sendError(ErrCodeInvalidMessage, "Payload is required")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return false
	}
	return true
}

// reply reports a failed session operation to the client
func (c *Client) reply(err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrStudentNameRequired):
		c.sendError(ErrCodeNameRequired, "Student name is required")
	case errors.Is(err, domain.ErrNotReady):
		c.sendError(ErrCodeNotReady, "Exam is not ready to start")
	case errors.Is(err, domain.ErrCameraUnavailable):
		c.sendError(ErrCodeCameraUnavailable, "Camera is unavailable")
	case errors.Is(err, domain.ErrQuestionOutOfRange), errors.Is(err, domain.ErrInvalidChoice):
		c.sendError(ErrCodeInvalidAnswer, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidTransition):
		c.sendError(ErrCodeInvalidAction, "Not allowed in the current exam state")
	default:
		c.logger.Error("session operation failed", "error", err)
		c.sendError(ErrCodeInternalError, "Internal error")
	}
}

// suppressIf tells the tab to prevent the native action
func (c *Client) suppressIf(action MessageType, suppress bool) {
	if !suppress {
		return
	}
	c.Send(NewServerMessage(MsgSuppress, &SuppressPayload{Action: action}))
}

// sendConnected sends the connected message to the client
func (c *Client) sendConnected() {
	payload := &ConnectedPayload{
		ClientID:  c.clientID,
		Snapshot:  c.session.Snapshot(),
		Questions: c.session.Questions(),
	}

	c.Send(NewServerMessage(MsgConnected, payload))
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	c.Send(NewServerMessage(MsgError, payload))
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	c.Send(NewServerMessage(MsgPong, nil))
}
