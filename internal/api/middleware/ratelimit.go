package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/metrics"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Pattern  string // "METHOD /path-prefix"
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // Enable auto-blocking after repeated violations
}

// DefaultLimits are applied by NewRateLimiter.
func DefaultLimits() []RateLimit {
	return []RateLimit{
		{"GET /ws", 30, time.Minute, ipKey},
		{"POST /register", 10, time.Hour, ipKey},
		{"GET /users/", 100, time.Minute, ipKey},
		{"GET /online", 60, time.Minute, tokenOrIPKey},
		{"GET /messages/", 120, time.Minute, tokenOrIPKey},
		{"POST /messages/", 60, time.Minute, tokenOrIPKey},
	}
}

// RateLimiter implements sliding window rate limiting backed by Redis.
type RateLimiter struct {
	client           *redis.Client
	limits           []RateLimit
	blocker          *IPBlocker
	logger           zerolog.Logger
	whitelist        []*net.IPNet
	whitelistIPs     map[string]bool
	autoBlockEnabled bool
}

// NewRateLimiter creates a new rate limiter with DefaultLimits.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:           client,
		blocker:          NewIPBlocker(client),
		logger:           logger,
		whitelistIPs:     make(map[string]bool),
		autoBlockEnabled: cfg.AutoBlockEnabled,
	}
	rl.SetLimits(DefaultLimits())

	// Parse whitelist entries
	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			// CIDR notation
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelist = append(rl.whitelist, ipNet)
		} else {
			// Single IP
			rl.whitelistIPs[entry] = true
		}
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

// SetLimits replaces the limit table. Longer patterns take precedence.
func (rl *RateLimiter) SetLimits(limits []RateLimit) {
	sorted := append([]RateLimit(nil), limits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Pattern) > len(sorted[j].Pattern)
	})
	rl.limits = sorted
}

// isWhitelisted checks if an IP is in the whitelist.
func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	// Check exact IP match
	if rl.whitelistIPs[ipStr] {
		return true
	}

	// Check CIDR ranges
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ipKey returns rate limit key based on client IP.
func ipKey(r *http.Request) string {
	return "ratelimit:ip:" + RealIP(r)
}

// tokenOrIPKey keys authenticated callers by a digest of their bearer token.
func tokenOrIPKey(r *http.Request) string {
	if token := auth.TokenFromRequest(r); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "ratelimit:token:" + hex.EncodeToString(sum[:16])
	}
	return ipKey(r)
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	// Check Fly.io header first
	if ip := r.Header.Get("Fly-Client-IP"); ip != "" {
		return ip
	}
	// Then X-Forwarded-For
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	// Then X-Real-IP
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CheckAndIncrement records a hit for key and reports whether it is within limit.
// Returns (allowed, remaining, resetAt). Redis failures fail open.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	now := time.Now()
	windowStart := now.Add(-window)
	resetAt := now.Add(window)

	pipe := rl.client.Pipeline()
	// Remove old entries outside window
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart.UnixMilli(), 10))
	// Count current entries
	countCmd := pipe.ZCard(ctx, key)
	// Add current request with unique member
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	// Set TTL on key
	pipe.PExpire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
		return true, limit, resetAt
	}

	count := countCmd.Val()
	remaining := limit - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}

	return count < int64(limit), remaining, resetAt
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		// Skip rate limiting for whitelisted IPs
		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		// Check IP block first
		if rl.blocker.IsBlocked(r.Context(), ip) {
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		// Find matching limit
		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limit.KeyFunc(r)
		allowed, remaining, resetAt := rl.CheckAndIncrement(r.Context(), key, limit.Requests, limit.Window)

		// Set rate limit headers
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			metrics.RateLimitHits.WithLabelValues(limit.Pattern).Inc()

			// Track violation
			rl.trackViolation(r.Context(), ip)

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit finds the matching rate limit for a request.
func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	key := r.Method + " " + r.URL.Path
	for i := range rl.limits {
		if strings.HasPrefix(key, rl.limits[i].Pattern) {
			return &rl.limits[i]
		}
	}
	return nil
}

// trackViolation counts rate limit violations and auto-blocks repeat offenders.
func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	key := fmt.Sprintf("violations:ip:%s", ip)
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	rl.client.Expire(ctx, key, time.Hour)

	if count >= 10 {
		rl.blocker.Block(ctx, ip, 24*time.Hour, "repeated rate limit violations")
		rl.logger.Warn().
			Str("type", "security").
			Str("event", "ip_auto_blocked").
			Str("ip", ip).
			Int64("violations", count).
			Msg("IP auto-blocked for repeated violations")
	}
}

// IPBlocker manages temporary IP blocks.
type IPBlocker struct {
	client *redis.Client
}

// NewIPBlocker creates a new IP blocker.
func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

// IsBlocked checks if an IP is blocked.
func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	exists, _ := b.client.Exists(ctx, blockKey(ip)).Result()
	return exists > 0
}

// Block blocks an IP for the specified duration.
func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.client.Set(ctx, blockKey(ip), reason, duration)
}

func blockKey(ip string) string {
	return "blocked:ip:" + ip
}
