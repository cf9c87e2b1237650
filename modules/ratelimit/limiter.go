// Package ratelimit limits request rates with a redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a request budget over a sliding window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// slidingWindowScript trims the window, then admits the request if the
// remaining entries are under the limit. It returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		local seq = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. seq)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = tonumber(oldest[2]) + window_ms - now
	end
	return {0, 0, retry_after}
`)

// SlidingWindowLimiter counts requests per key in a redis sorted set.
type SlidingWindowLimiter struct {
	client *redis.Client
	rule   Rule
	prefix string
}

// NewSlidingWindowLimiter creates a limiter whose keys share prefix.
func NewSlidingWindowLimiter(client *redis.Client, rule Rule, prefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		rule:   rule,
		prefix: prefix,
	}
}

// Rule returns the limiter's budget.
func (l *SlidingWindowLimiter) Rule() Rule {
	return l.rule
}

// Allow records a request for key if the budget allows it.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	redisKey := l.prefix + key

	raw, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":seq"},
		now.UnixMilli(),
		now.Add(-l.rule.Window).UnixMilli(),
		l.rule.Limit,
		l.rule.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run rate limit script: %w", err)
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result length: %d", len(raw))
	}

	result := &Result{
		Allowed:   raw[0] == 1,
		Remaining: int(raw[1]),
		ResetAt:   now.Add(l.rule.Window),
	}
	if !result.Allowed && raw[2] > 0 {
		result.RetryAfter = time.Duration(raw[2]) * time.Millisecond
	}
	return result, nil
}

// Count returns how many requests key has in the current window.
func (l *SlidingWindowLimiter) Count(ctx context.Context, key string) (int64, error) {
	windowStart := time.Now().Add(-l.rule.Window).UnixMilli()
	count, err := l.client.ZCount(ctx, l.prefix+key, strconv.FormatInt(windowStart, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}
