package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/api"
	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/config"
	"github.com/eldtechnologies/relay/internal/crypto"
	"github.com/eldtechnologies/relay/internal/handlers"
	"github.com/eldtechnologies/relay/internal/presence"
	"github.com/eldtechnologies/relay/internal/relay"
	"github.com/eldtechnologies/relay/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("node", cfg.NodeID).
			Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx := context.Background()

	// Initialize storage (PostgreSQL with migrations, or SQLite)
	db, backend, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer db.Close()
	logger.Info().Str("backend", backend).Msg("storage ready")

	// Initialize Redis store (optional)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL, cfg.NodeID)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		if n, err := redisStore.PurgeNode(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to purge stale presence")
		} else if n > 0 {
			logger.Info().Int("entries", n).Msg("purged stale presence")
		}
		logger.Info().Msg("connected to Redis")
	}

	// Token keys
	signer, publicKey := loadKeys(cfg, logger)
	verifier := auth.NewTokenVerifier(publicKey, db)

	// Presence registry, mirrored to Redis when available
	var registry presence.Registry = presence.NewMap()
	if redisStore != nil {
		registry = presence.NewMirrored(registry, redisStore, logger)
	}

	rl := relay.New(registry, db, db, logger, relay.Options{
		EventRate:  cfg.EventRatePerSec,
		EventBurst: cfg.EventBurst,
	})

	gateway := relay.NewGateway(rl, verifier, relay.GatewayConfig{
		Conn: relay.ConnConfig{
			PingInterval:    cfg.WSPingInterval,
			PongTimeout:     cfg.WSPongTimeout,
			WriteTimeout:    cfg.WSWriteTimeout,
			SendQueue:       cfg.WSSendQueue,
			MaxMessageBytes: cfg.WSMaxMessageBytes,
		},
		AllowedOrigins: cfg.WSAllowedOrigins,
	}, logger)

	// Create router
	router := api.NewRouter(logger, api.Deps{
		Handler:            handlers.NewHandler(db, redisStore, rl, signer, cfg.NodeID),
		Gateway:            gateway,
		Verifier:           verifier,
		Redis:              redisStore,
		AllowedOrigins:     cfg.WSAllowedOrigins,
		RateLimitWhitelist: cfg.RateLimitWhitelist,
		AutoBlockEnabled:   cfg.AutoBlockEnabled,
	})

	// WriteTimeout stays unset: upgraded connections manage their own deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("node", cfg.NodeID).
			Msg("starting relay server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Int("connections", gateway.ConnectionCount()).Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close sockets first; http.Server.Shutdown does not track hijacked connections.
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("websocket connections did not drain")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	if redisStore != nil {
		if _, err := redisStore.PurgeNode(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to purge presence on shutdown")
		}
	}

	logger.Info().Msg("server stopped")
}

// loadKeys resolves the token verification key and, when a signing key is
// configured, a signer for /register. Without either key the server cannot
// authenticate anyone, so it refuses to start.
func loadKeys(cfg *config.Config, logger zerolog.Logger) (*auth.Signer, ed25519.PublicKey) {
	var signer *auth.Signer
	if cfg.TokenSigningKey != "" {
		priv, err := crypto.ValidatePrivateKey(cfg.TokenSigningKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid TOKEN_SIGNING_KEY")
		}
		signer = auth.NewSigner(priv, cfg.TokenTTL)
	}

	if cfg.TokenPublicKey != "" {
		pub, err := crypto.ValidatePublicKey(cfg.TokenPublicKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid TOKEN_PUBLIC_KEY")
		}
		if signer != nil && !pub.Equal(signer.PublicKey()) {
			logger.Fatal().Msg("TOKEN_PUBLIC_KEY does not match TOKEN_SIGNING_KEY")
		}
		return signer, pub
	}

	if signer == nil {
		logger.Fatal().Msg("TOKEN_PUBLIC_KEY or TOKEN_SIGNING_KEY is required")
	}
	logger.Info().Msg("deriving token public key from signing key")
	return signer, signer.PublicKey()
}
