package ratelimit

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
)

// RateLimitModule owns the redis client behind the limiters. With no
// REDIS_ADDR configured it is disabled and its middleware passes through.
type RateLimitModule struct {
	client     *redis.Client
	middleware *Middleware
	addr       string
}

// Compile-time interface checks
var (
	_ mono.Module                = (*RateLimitModule)(nil)
	_ mono.HealthCheckableModule = (*RateLimitModule)(nil)
)

// NewModule creates a new RateLimitModule. The redis connection is checked on Start.
func NewModule(cfg config.RateLimitConfig, logger types.Logger) *RateLimitModule {
	m := &RateLimitModule{addr: cfg.RedisAddr}
	if !cfg.Enabled() {
		return m
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	m.middleware = NewMiddleware(m.client, cfg, logger)
	return m
}

// Name returns the module name.
func (m *RateLimitModule) Name() string {
	return "rate-limiter"
}

// Enabled reports whether a redis address was configured.
func (m *RateLimitModule) Enabled() bool {
	return m.client != nil
}

// Middleware returns the limiter middleware. It is nil when disabled, and a
// nil *Middleware passes every request through.
func (m *RateLimitModule) Middleware() *Middleware {
	return m.middleware
}

// Start verifies the redis connection.
func (m *RateLimitModule) Start(ctx context.Context) error {
	if !m.Enabled() {
		log.Println("[rate-limiter] REDIS_ADDR not set, rate limiting disabled")
		return nil
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Printf("[rate-limiter] Connected to Redis at %s", m.addr)
	return nil
}

// Stop closes the redis connection.
func (m *RateLimitModule) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[rate-limiter] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[rate-limiter] Module stopped")
	return nil
}

// Health pings redis when enabled.
func (m *RateLimitModule) Health(ctx context.Context) mono.HealthStatus {
	if !m.Enabled() {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "redis unavailable",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}
