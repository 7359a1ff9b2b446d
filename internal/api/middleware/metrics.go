package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eldtechnologies/relay/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		// A WebSocket session's duration is its lifetime, not request latency.
		if wrapped.status != http.StatusSwitchingProtocols {
			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method, path,
			).Observe(time.Since(start).Seconds())
		}
	})
}

// normalizePath normalizes paths to avoid high cardinality in metrics.
func normalizePath(path string) string {
	patterns := []struct{ prefix, normalized string }{
		{"/users/", "/users/:id"},
		{"/online/", "/online/:id"},
		{"/messages/", "/messages/:id"},
	}
	for _, p := range patterns {
		if strings.HasPrefix(path, p.prefix) && len(path) > len(p.prefix) {
			return p.normalized
		}
	}
	return path
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
