package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// windowTTL outlives the minute window so a late INCR never resurrects a
// stale counter without an expiry.
const windowTTL = 120 * time.Second

// Atomic check-and-increment of one fixed-window counter.
const windowLimitLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// RedisRateLimiter shares one per-minute window across relay replicas.
// When Redis is unreachable it degrades to a local window of the same size.
type RedisRateLimiter struct {
	redis        redis.Scripter
	name         string
	limit        int
	script       *redis.Script
	fallback     *WindowRateLimiter
	pollInterval time.Duration
	now          func() time.Time
}

// NewRedisRateLimiter creates a limiter keyed by name.
func NewRedisRateLimiter(client redis.Scripter, name string, perMinute int) *RedisRateLimiter {
	return &RedisRateLimiter{
		redis:        client,
		name:         name,
		limit:        perMinute,
		script:       redis.NewScript(windowLimitLuaScript),
		fallback:     NewWindowRateLimiter(perMinute),
		pollInterval: DefaultPollInterval,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NewRedisRateLimiterFromURL connects to Redis and verifies the connection.
func NewRedisRateLimiterFromURL(ctx context.Context, redisURL, name string, perMinute int) (*RedisRateLimiter, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisRateLimiter(client, name, perMinute), client, nil
}

// Key returns the counter key for the window containing t.
func (l *RedisRateLimiter) Key(t time.Time) string {
	return fmt.Sprintf("ratelimit:%s:min:%d", l.name, t.Unix()/60)
}

// Acquire polls the shared window until a slot is taken or maxWait elapses.
func (l *RedisRateLimiter) Acquire(ctx context.Context, maxWait time.Duration) bool {
	start := time.Now()
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			logger.Warn("shared rate limiter unavailable, using local window", "limiter", l.name, "error", err)
			return l.fallback.Acquire(ctx, maxWait-time.Since(start))
		}
		if allowed {
			return true
		}
		if time.Since(start) >= maxWait {
			return false
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	result, err := l.script.Run(ctx, l.redis,
		[]string{l.Key(l.now())},
		l.limit, int(windowTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return len(result) > 0 && result[0] == 1, nil
}
