package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/crypto"
	"github.com/eldtechnologies/relay/internal/metrics"
)

// ConnConfig holds per-connection transport limits.
type ConnConfig struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	SendQueue       int
	MaxMessageBytes int64
}

// DefaultConnConfig returns the limits used when none are configured.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		PingInterval:    25 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendQueue:       64,
		MaxMessageBytes: 16 * 1024,
	}
}

func (c ConnConfig) withDefaults() ConnConfig {
	d := DefaultConnConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	return c
}

// Conn is one authenticated WebSocket session. A single reader goroutine
// dispatches inbound events in order; a single writer goroutine drains the
// bounded outbound queue.
type Conn struct {
	ws          *websocket.Conn
	id          string
	identity    auth.Identity
	connectedAt time.Time
	cfg         ConnConfig
	logger      zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

func newConn(ws *websocket.Conn, identity auth.Identity, cfg ConnConfig, logger zerolog.Logger) *Conn {
	id := crypto.NewHandleID()
	return &Conn{
		ws:          ws,
		id:          id,
		identity:    identity,
		connectedAt: time.Now().UTC(),
		cfg:         cfg,
		logger: logger.With().
			Str("user_id", identity.UserID).
			Str("handle_id", id).
			Logger(),
		send: make(chan []byte, cfg.SendQueue),
		done: make(chan struct{}),
	}
}

// HandleID implements presence.Handle.
func (c *Conn) HandleID() string { return c.id }

// Identity returns the authenticated user behind the connection.
func (c *Conn) Identity() auth.Identity { return c.identity }

// ConnectedAt returns when the handshake completed.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// CloseReason returns why the connection was closed, or "" while it is open.
func (c *Conn) CloseReason() string {
	select {
	case <-c.done:
		return c.reason
	default:
		return ""
	}
}

// Send implements presence.Handle. It never blocks: if the outbound queue is
// full the connection is treated as a slow consumer and closed.
func (c *Conn) Send(event string, payload any) bool {
	data, err := json.Marshal(outboundEnvelope{Event: event, Data: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		metrics.SlowConsumers.Inc()
		c.logger.Warn().Str("event", event).Int("queue", cap(c.send)).Msg("outbound queue full, closing slow consumer")
		go c.Close("slow_consumer")
		return false
	}
}

// Close shuts the connection down once, recording reason.
func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
		metrics.Disconnects.WithLabelValues(reason).Inc()

		code := websocket.CloseNormalClosure
		switch reason {
		case "slow_consumer":
			code = websocket.ClosePolicyViolation
		case "shutdown":
			code = websocket.CloseGoingAway
		}
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()

		c.logger.Debug().Str("reason", reason).Msg("connection closed")
	})
}

// readPump reads frames until the transport fails, calling dispatch for each
// event. dispatch returning true ends the session.
func (c *Conn) readPump(ctx context.Context, dispatch func(context.Context, Envelope) bool) {
	c.ws.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.Close(readCloseReason(err))
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		if msgType != websocket.TextMessage {
			c.Send(EventError, ErrorEvent{Message: "binary frames are not supported"})
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			metrics.EventErrors.WithLabelValues("validation").Inc()
			c.Send(EventError, ErrorEvent{Message: "invalid event frame"})
			continue
		}

		if dispatch(ctx, env) {
			c.Close("logout")
			return
		}
	}
}

// writePump drains the outbound queue and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				c.Close("write_error")
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close("ping_failed")
				return
			}
		}
	}
}

func readCloseReason(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return "client_closed"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		return "message_too_large"
	}
	return "read_error"
}
