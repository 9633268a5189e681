package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a Redis-backed token bucket keyed per user, protecting the
// chat endpoints from runaway polling and bulk submission.
type Limiter struct {
	client    *redis.Client
	capacity  int
	refill    float64 // tokens per second
	keyPrefix string
	ttl       time.Duration
}

// NewLimiter constructs a bucket with the provided capacity and refill rate.
func NewLimiter(client *redis.Client, capacity int, refillPerSecond float64) *Limiter {
	return &Limiter{
		client:    client,
		capacity:  capacity,
		refill:    refillPerSecond,
		keyPrefix: "rl:user:",
		ttl:       time.Hour,
	}
}

// Allow consumes cost tokens for the user if available. It returns whether
// the request may proceed and the tokens remaining.
func (l *Limiter) Allow(ctx context.Context, userID string, cost int) (bool, float64, error) {
	if cost <= 0 {
		cost = 1
	}
	key := l.keyPrefix + userID
	now := time.Now().UnixMilli()
	res, err := bucketScript.Run(ctx, l.client, []string{key}, l.capacity, l.refill, now, l.ttl.Milliseconds(), cost).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 2 {
		return false, 0, fmt.Errorf("unexpected script result: %v", res)
	}
	allowed := arr[0].(int64) == 1
	var tokens float64
	switch v := arr[1].(type) {
	case int64:
		tokens = float64(v)
	case float64:
		tokens = v
	}
	return allowed, tokens, nil
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2]) -- tokens per second
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local cost = tonumber(ARGV[5])

local data = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then tokens = capacity end
if last == nil then last = now end

local delta = math.max(0, now - last)
tokens = math.min(capacity, tokens + delta / 1000 * refill)

local allowed = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
end

redis.call('HMSET', key, 'tokens', tokens, 'last_ms', now)
if ttl > 0 then redis.call('PEXPIRE', key, ttl) end
return {allowed, tokens}
`)
