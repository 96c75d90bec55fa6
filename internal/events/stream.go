package events

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// StreamHandler pushes a session's events over a WebSocket connection.
type StreamHandler struct {
	hub          *Hub
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	originHosts  []string
}

// StreamOption configures a StreamHandler.
type StreamOption func(*StreamHandler)

// WithPingInterval sets the keep-alive ping period. Zero disables pings.
func WithPingInterval(d time.Duration) StreamOption {
	return func(s *StreamHandler) { s.pingInterval = d }
}

// WithOriginPatterns allows cross-origin upgrades from the given host patterns.
func WithOriginPatterns(patterns ...string) StreamOption {
	return func(s *StreamHandler) { s.originHosts = patterns }
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(hub *Hub, logger *zap.Logger, opts ...StreamOption) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StreamHandler{
		hub:          hub,
		logger:       logger.With(zap.String("component", "event_stream")),
		writeTimeout: 5 * time.Second,
		pingInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve upgrades the request and streams events until either side goes away.
func (s *StreamHandler) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originHosts})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events, cancel := s.hub.Subscribe(sessionID)
	defer cancel()

	// Clients never send data; CloseRead handles control frames.
	ctx := conn.CloseRead(r.Context())

	var ping <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	s.logger.Debug("event stream opened", zap.String("session_id", sessionID))
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("event stream closed", zap.String("session_id", sessionID))
			return
		case e, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "hub closed")
				return
			}
			if err := s.write(ctx, conn, e); err != nil {
				s.logger.Debug("event write failed", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		case <-ping:
			pctx, pcancel := context.WithTimeout(ctx, s.writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *StreamHandler) write(ctx context.Context, conn *websocket.Conn, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
