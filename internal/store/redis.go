package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/relay/internal/metrics"
)

// presenceKey holds identity -> "node:handle" for every live connection in the cluster.
const presenceKey = "presence:online"

// clearPresenceScript deletes a presence field only if it still names the given handle.
var clearPresenceScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// RedisStore handles Redis operations for cluster presence and rate limiting.
type RedisStore struct {
	client *redis.Client
	node   string
}

// NewRedisStore creates a new Redis store. node identifies this process in presence entries.
func NewRedisStore(ctx context.Context, redisURL, node string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client, node: node}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the HTTP rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func observeRedis(start time.Time) {
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
}

func (s *RedisStore) presenceValue(handleID string) string {
	return s.node + ":" + handleID
}

// PublishPresence records that identity is connected on this node through handleID.
func (s *RedisStore) PublishPresence(ctx context.Context, identity, handleID string) error {
	defer observeRedis(time.Now())
	return s.client.HSet(ctx, presenceKey, identity, s.presenceValue(handleID)).Err()
}

// ClearPresence removes identity's presence entry if it still points at handleID.
func (s *RedisStore) ClearPresence(ctx context.Context, identity, handleID string) error {
	defer observeRedis(time.Now())
	return clearPresenceScript.Run(ctx, s.client, []string{presenceKey}, identity, s.presenceValue(handleID)).Err()
}

// OnlineCount returns the cluster-wide number of connected identities.
func (s *RedisStore) OnlineCount(ctx context.Context) (int64, error) {
	defer observeRedis(time.Now())
	return s.client.HLen(ctx, presenceKey).Result()
}

// PurgeNode drops every presence entry owned by this node. Called on startup and shutdown
// so a crashed process does not leave identities marked online.
func (s *RedisStore) PurgeNode(ctx context.Context) (int, error) {
	defer observeRedis(time.Now())

	entries, err := s.client.HGetAll(ctx, presenceKey).Result()
	if err != nil {
		return 0, err
	}

	prefix := s.node + ":"
	var stale []string
	for identity, value := range entries {
		if strings.HasPrefix(value, prefix) {
			stale = append(stale, identity)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.client.HDel(ctx, presenceKey, stale...).Result()
	return int(n), err
}
