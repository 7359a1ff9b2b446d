package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/api/middleware"
	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/handlers"
	"github.com/eldtechnologies/relay/internal/store"
)

// maxBodyBytes bounds REST request bodies. It leaves room for a maximum
// length message text plus its JSON envelope.
const maxBodyBytes = 16 * 1024

// Deps are the collaborators the router mounts.
type Deps struct {
	Handler  *handlers.Handler
	Gateway  http.Handler
	Verifier auth.Verifier
	Redis    *store.RedisStore // optional; enables HTTP rate limiting

	AllowedOrigins     []string
	RateLimitWhitelist []string
	AutoBlockEnabled   bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting needs shared counters, so it is only active with Redis.
	if deps.Redis != nil {
		limiter := middleware.NewRateLimiter(deps.Redis.Client(), logger, middleware.RateLimiterConfig{
			Whitelist:        deps.RateLimitWhitelist,
			AutoBlockEnabled: deps.AutoBlockEnabled,
		})
		r.Use(limiter.Middleware)
	} else {
		logger.Warn().Msg("redis not configured, HTTP rate limiting disabled")
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := deps.Handler
	authMW := middleware.NewAuthMiddleware(deps.Verifier, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/register", h.Register)
	r.Get("/users/{id}", h.GetUser)

	// The gateway authenticates during the handshake itself.
	r.Method(http.MethodGet, "/ws", deps.Gateway)

	// Authenticated routes (bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireAuth)

		r.Get("/online", h.OnlineUsers)
		r.Get("/online/{id}", h.CheckOnline)
		r.Get("/messages/{id}", h.GetHistory)
		r.Post("/messages/{id}", h.SendMessage)
	})

	return r
}
