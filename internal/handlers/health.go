package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"` // "pass", "fail" or "skip"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string           `json:"status"` // "healthy" or "degraded"
	Version     string           `json:"version"`
	Instance    string           `json:"instance,omitempty"`
	OnlineUsers int              `json:"onlineUsers"`
	Checks      map[string]Check `json:"checks"`
	Timestamp   string           `json:"timestamp"`
}

// Health reports database and Redis reachability. Redis is optional; the
// service is degraded only when a configured dependency fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	dbStart := time.Now()
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["database"] = Check{Status: "pass", Latency: time.Since(dbStart).String()}
	}

	if h.redis != nil {
		redisStart := time.Now()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["redis"] = Check{Status: "pass", Latency: time.Since(redisStart).String()}
		}
	} else {
		checks["redis"] = Check{Status: "skip", Message: "not configured"}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:      status,
		Version:     version,
		Instance:    h.node,
		OnlineUsers: h.relay.Registry().Len(),
		Checks:      checks,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	WebSocket string   `json:"websocket"`
	Events    []string `json:"events"`
}

// Root describes the API.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:      "relay",
		Version:   version,
		WebSocket: "/ws",
		Events: []string{
			"send_message", "typing", "get_chat_history",
			"get_online_users", "check_user_online", "logout",
		},
	})
}
