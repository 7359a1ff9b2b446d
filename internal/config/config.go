package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	Env      string `env:"ENV"       envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	NodeID   string `env:"NODE_ID"`

	// Storage. Postgres is used when DatabaseURL is set, SQLite otherwise.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"./data/relay.db"`
	RedisURL    string `env:"REDIS_URL"`

	// Bearer tokens
	TokenPublicKey  string        `env:"TOKEN_PUBLIC_KEY"`
	TokenSigningKey string        `env:"TOKEN_SIGNING_KEY"`
	TokenTTL        time.Duration `env:"TOKEN_TTL"         envDefault:"24h"`

	// Rate limiting
	RateLimitWhitelist []string `env:"RATE_LIMIT_WHITELIST" envSeparator:","` // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     `env:"AUTO_BLOCK_ENABLED"`                    // Enable auto-blocking after repeated violations
	EventRatePerSec    float64  `env:"EVENT_RATE_PER_SEC" envDefault:"20"`
	EventBurst         int      `env:"EVENT_BURST"        envDefault:"40"`

	// WebSocket transport
	WSPingInterval    time.Duration `env:"WS_PING_INTERVAL"     envDefault:"25s"`
	WSPongTimeout     time.Duration `env:"WS_PONG_TIMEOUT"      envDefault:"60s"`
	WSWriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT"     envDefault:"10s"`
	WSSendQueue       int           `env:"WS_SEND_QUEUE"        envDefault:"64"`
	WSMaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"16384"`
	WSAllowedOrigins  []string      `env:"WS_ALLOWED_ORIGINS"   envSeparator:","`
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// It panics on malformed values, and in production on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Parse reads the environment into a Config and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.RateLimitWhitelist = compact(cfg.RateLimitWhitelist)
	cfg.WSAllowedOrigins = compact(cfg.WSAllowedOrigins)

	if cfg.NodeID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "relay"
		}
		cfg.NodeID = host
	}

	if cfg.WSPingInterval >= cfg.WSPongTimeout {
		return nil, fmt.Errorf("WS_PING_INTERVAL (%s) must be shorter than WS_PONG_TIMEOUT (%s)", cfg.WSPingInterval, cfg.WSPongTimeout)
	}

	// In production, require a database and a way to verify tokens
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.TokenPublicKey == "" {
			return nil, fmt.Errorf("TOKEN_PUBLIC_KEY is required in production")
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// compact trims entries and drops empty ones.
func compact(in []string) []string {
	var out []string
	for _, entry := range in {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
