package ratelimit

import (
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
)

// KeyFunc returns the rate limit key for a request, or "" to fall back to
// the client IP.
type KeyFunc func(c *fiber.Ctx) string

// Middleware builds fiber handlers backed by sliding window limiters.
// A nil *Middleware passes every request through.
type Middleware struct {
	auth   *SlidingWindowLimiter
	writes *SlidingWindowLimiter
	logger types.Logger
}

// NewMiddleware creates the auth and write limiters from cfg.
func NewMiddleware(client *redis.Client, cfg config.RateLimitConfig, logger types.Logger) *Middleware {
	return &Middleware{
		auth:   NewSlidingWindowLimiter(client, Rule{Limit: cfg.AuthLimit, Window: cfg.Window}, cfg.KeyPrefix+"auth:"),
		writes: NewSlidingWindowLimiter(client, Rule{Limit: cfg.WriteLimit, Window: cfg.Window}, cfg.KeyPrefix+"writes:"),
		logger: logger,
	}
}

// AuthLimit limits register and login attempts per client IP.
func (m *Middleware) AuthLimit() fiber.Handler {
	if m == nil {
		return passThrough
	}
	return m.handler(m.auth, nil)
}

// WriteLimit limits message and reaction writes per key, usually the user id.
func (m *Middleware) WriteLimit(key KeyFunc) fiber.Handler {
	if m == nil {
		return passThrough
	}
	return m.handler(m.writes, key)
}

func (m *Middleware) handler(limiter *SlidingWindowLimiter, key KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		k := ""
		if key != nil {
			k = key(c)
		}
		if k == "" {
			k = "ip:" + c.IP()
		}

		result, err := limiter.Allow(c.UserContext(), k)
		if err != nil {
			// Fail open while redis is unavailable.
			m.logger.Warn("Rate limit check failed", "key", k, "error", err)
			return c.Next()
		}

		setRateLimitHeaders(c, result, limiter.Rule().Limit)
		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}
		return c.Next()
	}
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

func setRateLimitHeaders(c *fiber.Ctx, result *Result, limit int) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func sendRateLimitExceeded(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": "Too many requests",
	})
}
