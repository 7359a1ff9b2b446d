package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware using zerolog.
// WebSocket sessions are logged once, when the session ends.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi's wrapper keeps http.Hijacker available for the upgrade
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ev := logger.Info()
				if ww.Status() >= http.StatusInternalServerError {
					ev = logger.Error()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", RealIP(r)).
					Bool("websocket", isUpgrade(r)).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
