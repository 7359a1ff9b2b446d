package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Open WebSocket connections on this node",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Identities present in the presence registry",
		},
	)

	Handshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_handshakes_total",
			Help: "WebSocket handshakes by result",
		},
		[]string{"result"}, // "accepted", "missing_token", "rejected", "upgrade_failed"
	)

	Disconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_disconnects_total",
			Help: "Closed connections by reason",
		},
		[]string{"reason"},
	)

	// Business metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_received_total",
			Help: "Inbound client events",
		},
		[]string{"event"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Messages persisted and acknowledged",
		},
	)

	MessageDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_message_deliveries_total",
			Help: "Live delivery attempts by outcome",
		},
		[]string{"outcome"}, // "delivered", "offline", "dropped"
	)

	TypingSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_typing_signals_total",
			Help: "Typing signals by outcome",
		},
		[]string{"outcome"}, // "forwarded", "offline"
	)

	HistoryQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_history_queries_total",
			Help: "Chat history queries",
		},
	)

	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_event_errors_total",
			Help: "Errors returned to clients by kind",
		},
		[]string{"kind"},
	)

	SlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_slow_consumers_total",
			Help: "Connections closed because their outbound queue was full",
		},
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_users_registered_total",
			Help: "Total users registered",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
