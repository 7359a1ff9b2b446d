package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers    int64  `json:"totalUsers"`
	TotalMessages int64  `json:"totalMessages"`
	OnlineUsers   int    `json:"onlineUsers"`
	ClusterOnline *int64 `json:"clusterOnline,omitempty"`
	LastActivity  string `json:"lastActivity"`
}

// Stats returns aggregate counts for dashboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.db.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalMessages, err := h.db.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	lastMessage, err := h.db.GetMostRecentMessageTime(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get last activity")
		return
	}

	lastActivity := "no activity yet"
	if lastMessage != nil {
		lastActivity = formatTimeAgo(*lastMessage)
	}

	resp := StatsResponse{
		TotalUsers:    totalUsers,
		TotalMessages: totalMessages,
		OnlineUsers:   h.relay.Registry().Len(),
		LastActivity:  lastActivity,
	}

	// Cluster-wide presence is best effort.
	if h.redis != nil {
		if n, err := h.redis.OnlineCount(ctx); err == nil {
			resp.ClusterOnline = &n
		}
	}

	h.JSON(w, http.StatusOK, resp)
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return strconv.Itoa(n) + " " + unit + "s ago"
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	default:
		return plural(int(diff.Hours()/24), "day")
	}
}
