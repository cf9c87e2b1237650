// Package config loads application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the complete application configuration.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8000"`
	ClientURL       string        `env:"CLIENT_URL" envDefault:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Assistant AssistantConfig
	Realtime  RealtimeConfig
}

// DatabaseConfig selects and locates the relational store.
type DatabaseConfig struct {
	Driver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DSN       string `env:"DB_DSN" envDefault:"chat.db"`
	SeedRooms bool   `env:"DB_SEED_ROOMS" envDefault:"true"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"realtime-chat"`
	TokenTTL   time.Duration `env:"JWT_TTL" envDefault:"1h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
}

// RateLimitConfig configures the redis sliding window limiter.
// An empty RedisAddr disables rate limiting.
type RateLimitConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	WriteLimit    int           `env:"RATE_LIMIT_WRITES" envDefault:"60"`
	AuthLimit     int           `env:"RATE_LIMIT_AUTH" envDefault:"10"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	KeyPrefix     string        `env:"RATE_LIMIT_PREFIX" envDefault:"chat:ratelimit:"`
}

// Enabled reports whether a redis address was configured.
func (c RateLimitConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// AssistantConfig configures the completion-API proxy.
type AssistantConfig struct {
	APIKey  string        `env:"OPENAI_API_KEY"`
	BaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	Timeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
}

// RealtimeConfig tunes websocket sessions.
type RealtimeConfig struct {
	MailboxSize  int           `env:"WS_MAILBOX_SIZE" envDefault:"256"`
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	PongWait     time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WriteWait    time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] Warning: could not load .env file: %v", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that struct tags cannot express.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.Realtime.MailboxSize <= 0 {
		return errors.New("WS_MAILBOX_SIZE must be positive")
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return errors.New("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}
	return nil
}
