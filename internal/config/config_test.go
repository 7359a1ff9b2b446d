package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "SQLITE_PATH", "TOKEN_TTL", "WS_PING_INTERVAL",
		"WS_PONG_TIMEOUT", "WS_WRITE_TIMEOUT", "WS_SEND_QUEUE", "WS_MAX_MESSAGE_BYTES",
		"WS_ALLOWED_ORIGINS", "EVENT_RATE_PER_SEC", "EVENT_BURST",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("NODE_ID", "node-a")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, "./data/relay.db", cfg.SQLitePath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 25*time.Second, cfg.WSPingInterval)
	assert.Equal(t, 60*time.Second, cfg.WSPongTimeout)
	assert.Equal(t, 10*time.Second, cfg.WSWriteTimeout)
	assert.Equal(t, 64, cfg.WSSendQueue)
	assert.Equal(t, int64(16384), cfg.WSMaxMessageBytes)
	assert.Equal(t, 20.0, cfg.EventRatePerSec)
	assert.Equal(t, 40, cfg.EventBurst)
	assert.Empty(t, cfg.WSAllowedOrigins)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,192.168.0.0/16 ")
	t.Setenv("AUTO_BLOCK_ENABLED", "true")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("WS_PONG_TIMEOUT", "15s")
	t.Setenv("TOKEN_TTL", "0s")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.RateLimitWhitelist)
	assert.True(t, cfg.AutoBlockEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WSAllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.WSPingInterval)
	assert.Equal(t, time.Duration(0), cfg.TokenTTL)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"WS_PONG_TIMEOUT": "soon"}},
		{"bad int", map[string]string{"WS_SEND_QUEUE": "many"}},
		{"ping not shorter than pong", map[string]string{"WS_PING_INTERVAL": "60s", "WS_PONG_TIMEOUT": "30s"}},
		{"production without database", map[string]string{"ENV": "production", "TOKEN_PUBLIC_KEY": "x"}},
		{"production without token key", map[string]string{"ENV": "production", "DATABASE_URL": "postgres://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PanicsInProductionWithoutDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOKEN_PUBLIC_KEY", "")

	assert.Panics(t, func() { Load() })
}
