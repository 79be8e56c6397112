package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a per-key sliding window rate limiter using Redis.
// Uses a sorted set where each member is a unique request ID with a timestamp score.
// A Lua script atomically cleans expired entries, checks the count, and adds new entries.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

// Lua script for atomic sliding window rate limiting.
// 1. Remove entries older than the window
// 2. Count remaining entries
// 3. If under the limit, add a new entry and return 1 (allowed)
// 4. If at/over the limit, return 0 (denied)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.floor(window / 1000) + 1)
    return 1
else
    return 0
end
`)

// NewRateLimiter allows up to limit calls per key within window.
func NewRateLimiter(redisClient *redis.Client, window time.Duration, logger *slog.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      window,
	}
}

func rlKey(key string) string {
	return fmt.Sprintf("rl:%s", key)
}

// Allow reports whether another call for key fits in the current window.
// A limit <= 0 disables limiting. Redis errors fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixMilli(), now.UnixNano()%1_000_000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(key)},
		now.UnixMilli(), rl.window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "key", key)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "key", key, "limit", limit)
		return false
	}
	return true
}
