// Package config loads process configuration from the environment so main
// stays lean. Every knob has a development-safe default; production overrides
// via SMS_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config groups all runtime configuration for the hub.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Gateway    GatewayConfig
	Classifier ClassifierConfig
	Cache      CacheConfig
	Dispatch   DispatchConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr     string
	LogLevel string
}

// DatabaseConfig selects the persistence backend. An empty URL runs the hub
// on in-memory stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the optional Redis recipient-cache backend. An
// empty URL disables Redis and the cache stays in-process.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the lifecycle event sink. No brokers means events
// stay in-process only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuthConfig holds the static API credential and token signing material.
type AuthConfig struct {
	AdminUser string
	// AdminPasswordHash is a bcrypt hash. Plain SMS_ADMIN_PASSWORD is only
	// honored when no hash is provided.
	AdminPasswordHash string
	AdminPassword     string
	JWTSigningKey     string
	TokenTTL          time.Duration
}

// GatewayConfig points at the upstream SMS gateway. An empty URL swaps in
// the loopback gateway for development.
type GatewayConfig struct {
	URL      string
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// ClassifierConfig tunes the urgency classifier. An empty remote URL skips
// escalation entirely and the heuristic always decides.
type ClassifierConfig struct {
	RemoteURL     string
	RemoteTimeout time.Duration
	Threshold     float64
}

// CacheConfig bounds the recipient cache.
type CacheConfig struct {
	TTL      time.Duration
	Capacity int
}

// DispatchConfig tunes the send-job workers.
type DispatchConfig struct {
	Workers      int
	MaxAttempts  int
	BaseBackoff  time.Duration
	PollInterval time.Duration
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:     envString("SMS_ADDR", ":8080"),
			LogLevel: envString("SMS_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("SMS_DATABASE_URL"),
			MaxOpenConns: envInt("SMS_DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("SMS_DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("SMS_REDIS_URL"),
			PoolSize:     envInt("SMS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SMS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("SMS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SMS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SMS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("SMS_KAFKA_BROKERS"),
			Topic:   envString("SMS_KAFKA_TOPIC", "sms.events"),
		},
		Auth: AuthConfig{
			AdminUser:         envString("SMS_ADMIN_USER", "admin"),
			AdminPasswordHash: os.Getenv("SMS_ADMIN_PASSWORD_HASH"),
			// Development default; override either variable in production.
			AdminPassword: envString("SMS_ADMIN_PASSWORD", "admin123"),
			JWTSigningKey: envString("SMS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:      envDuration("SMS_TOKEN_TTL", 24*time.Hour),
		},
		Gateway: GatewayConfig{
			URL:      os.Getenv("SMS_GATEWAY_URL"),
			Username: os.Getenv("SMS_GATEWAY_USERNAME"),
			Password: os.Getenv("SMS_GATEWAY_PASSWORD"),
			From:     os.Getenv("SMS_GATEWAY_FROM"),
			Timeout:  envDuration("SMS_GATEWAY_TIMEOUT", 10*time.Second),
		},
		Classifier: ClassifierConfig{
			RemoteURL:     os.Getenv("SMS_CLASSIFIER_URL"),
			RemoteTimeout: envDuration("SMS_CLASSIFIER_TIMEOUT", 3*time.Second),
			Threshold:     envFloat("SMS_CLASSIFIER_THRESHOLD", 0.85),
		},
		Cache: CacheConfig{
			TTL:      envDuration("SMS_CACHE_TTL", 5*time.Minute),
			Capacity: envInt("SMS_CACHE_CAPACITY", 500),
		},
		Dispatch: DispatchConfig{
			Workers:      envInt("SMS_DISPATCH_WORKERS", 2),
			MaxAttempts:  envInt("SMS_DISPATCH_MAX_ATTEMPTS", 5),
			BaseBackoff:  envDuration("SMS_DISPATCH_BASE_BACKOFF", time.Second),
			PollInterval: envDuration("SMS_DISPATCH_POLL_INTERVAL", 250*time.Millisecond),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
