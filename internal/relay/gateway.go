package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/metrics"
)

// GatewayConfig configures the WebSocket endpoint.
type GatewayConfig struct {
	Conn ConnConfig
	// AllowedOrigins restricts browser origins; empty allows all.
	AllowedOrigins []string
}

// Gateway authenticates WebSocket handshakes and runs one Conn per session.
type Gateway struct {
	relay    *Relay
	verifier auth.Verifier
	upgrader websocket.Upgrader
	cfg      ConnConfig
	logger   zerolog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewGateway creates the handler mounted at /ws.
func NewGateway(r *Relay, verifier auth.Verifier, cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		relay:    r,
		verifier: verifier,
		cfg:      cfg.Conn.withDefaults(),
		logger:   logger.With().Str("component", "gateway").Logger(),
		conns:    make(map[*Conn]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return set[strings.ToLower(origin)]
	}
}

// ServeHTTP authenticates the request, upgrades it and serves the session
// until the transport closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		metrics.Handshakes.WithLabelValues("missing_token").Inc()
		writeJSONError(w, http.StatusUnauthorized, "missing token")
		return
	}

	identity, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrAuthentication) {
			metrics.Handshakes.WithLabelValues("rejected").Inc()
			g.logger.Warn().
				Str("type", "security").
				Str("remote_addr", r.RemoteAddr).
				Err(err).
				Msg("handshake rejected")
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		metrics.Handshakes.WithLabelValues("error").Inc()
		g.logger.Error().Err(err).Msg("credential verification failed")
		writeJSONError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.Handshakes.WithLabelValues("upgrade_failed").Inc()
		g.logger.Debug().Err(err).Str("user_id", identity.UserID).Msg("upgrade failed")
		return
	}
	metrics.Handshakes.WithLabelValues("accepted").Inc()

	g.serve(ws, *identity)
}

func (g *Gateway) serve(ws *websocket.Conn, identity auth.Identity) {
	c := newConn(ws, identity, g.cfg, g.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.Done()
		cancel()
	}()

	g.track(c)
	defer g.untrack(c)
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	g.relay.Connect(identity, c)
	go c.writePump()

	c.readPump(ctx, func(ctx context.Context, env Envelope) bool {
		return g.relay.Dispatch(ctx, identity, c, env)
	})

	g.relay.Disconnect(identity, c)
	g.logger.Debug().
		Str("user_id", identity.UserID).
		Str("handle_id", c.HandleID()).
		Str("reason", c.CloseReason()).
		Dur("duration", time.Since(c.ConnectedAt())).
		Msg("session ended")
}

func (g *Gateway) track(c *Conn) {
	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) untrack(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
}

// ConnectionCount returns the number of open sessions on this node.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown closes every open session and waits for their cleanup or ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	conns := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close("shutdown")
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for g.ConnectionCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
