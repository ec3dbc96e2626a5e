// Package config loads process configuration from the environment and hands
// each module only the narrow interface it needs.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"crm_backend/platform/phone"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the Redis-backed task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DistributionConfig provides tuning for round-robin lead distribution.
type DistributionConfig interface {
	GetDistributionMaxAttempts() int
	GetDistributionRetryDelay() time.Duration
	GetDistributionLockEnabled() bool
	GetDistributionLockTTL() time.Duration
}

// FormCaptureConfig provides settings for the public form capture endpoint.
type FormCaptureConfig interface {
	GetFormCaptureRatePerMinute() float64
	GetFormCaptureBurst() int
}

// PhoneConfig provides the region national phone numbers are read in.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// RetentionConfig provides the assignment-history pruning schedule.
type RetentionConfig interface {
	GetHistoryCleanupInterval() time.Duration
	GetHistoryRetention() time.Duration
	GetSkippedHistoryRetention() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	MigrationsEnabled        bool
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	DistributionMaxAttempts  int
	DistributionRetryDelay   time.Duration
	DistributionLockEnabled  bool
	DistributionLockTTL      time.Duration
	FormCaptureRatePerMinute float64
	FormCaptureBurst         int
	PhoneDefaultRegion       string
	HistoryCleanupInterval   time.Duration
	HistoryRetention         time.Duration
	SkippedHistoryRetention  time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool  { return c.RedisURL != "" }

// DistributionConfig implementation
func (c *Config) GetDistributionMaxAttempts() int          { return c.DistributionMaxAttempts }
func (c *Config) GetDistributionRetryDelay() time.Duration { return c.DistributionRetryDelay }
func (c *Config) GetDistributionLockEnabled() bool         { return c.DistributionLockEnabled }
func (c *Config) GetDistributionLockTTL() time.Duration    { return c.DistributionLockTTL }

// FormCaptureConfig implementation
func (c *Config) GetFormCaptureRatePerMinute() float64 { return c.FormCaptureRatePerMinute }
func (c *Config) GetFormCaptureBurst() int             { return c.FormCaptureBurst }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// RetentionConfig implementation
func (c *Config) GetHistoryCleanupInterval() time.Duration  { return c.HistoryCleanupInterval }
func (c *Config) GetHistoryRetention() time.Duration        { return c.HistoryRetention }
func (c *Config) GetSkippedHistoryRetention() time.Duration { return c.SkippedHistoryRetention }

// Load reads configuration from the environment, after an optional .env file.
// Malformed values are reported together rather than silently zeroed.
func Load() (*Config, error) {
	_ = godotenv.Load()
	env := &envReader{}

	corsOrigins := splitCSV(env.str("CORS_ORIGINS", "http://localhost:5173"))
	redisURL := env.str("REDIS_URL", "")

	cfg := &Config{
		Env:                      env.str("APP_ENV", "development"),
		HTTPAddr:                 env.str("HTTP_ADDR", ":8080"),
		DatabaseURL:              env.str("DATABASE_URL", ""),
		MigrationsEnabled:        env.boolean("MIGRATIONS_ENABLED", true),
		JWTAccessSecret:          env.str("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             env.boolean("CORS_ALLOW_ALL", false) || slices.Contains(corsOrigins, "*"),
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           env.boolean("CORS_ALLOW_CREDENTIALS", true),
		RedisURL:                 redisURL,
		RedisTLSInsecure:         env.boolean("REDIS_TLS_INSECURE", false),
		AsynqQueueName:           env.str("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         env.integer("ASYNQ_CONCURRENCY", 10),
		DistributionMaxAttempts:  env.integer("DISTRIBUTION_MAX_ATTEMPTS", 5),
		DistributionRetryDelay:   env.duration("DISTRIBUTION_RETRY_DELAY", 15*time.Millisecond),
		DistributionLockEnabled:  redisURL != "" && env.boolean("DISTRIBUTION_LOCK_ENABLED", true),
		DistributionLockTTL:      env.duration("DISTRIBUTION_LOCK_TTL", 5*time.Second),
		FormCaptureRatePerMinute: env.float("FORM_CAPTURE_RATE_PER_MINUTE", 30),
		FormCaptureBurst:         env.integer("FORM_CAPTURE_BURST", 10),
		PhoneDefaultRegion:       strings.ToUpper(env.str("PHONE_DEFAULT_REGION", "")),
		HistoryCleanupInterval:   env.duration("ASSIGNMENT_HISTORY_CLEANUP_INTERVAL", time.Hour),
		HistoryRetention:         days(env.integer("ASSIGNMENT_HISTORY_RETENTION_DAYS", 90)),
		SkippedHistoryRetention:  days(env.integer("ASSIGNMENT_HISTORY_SKIPPED_RETENTION_DAYS", 30)),
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.PhoneDefaultRegion == "" {
		cfg.PhoneDefaultRegion = phone.DefaultRegion
	}
	if !phone.IsSupportedRegion(cfg.PhoneDefaultRegion) {
		return nil, fmt.Errorf("PHONE_DEFAULT_REGION %q is not a known region code", cfg.PhoneDefaultRegion)
	}
	if cfg.DistributionMaxAttempts < 1 {
		return nil, fmt.Errorf("DISTRIBUTION_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

type envReader struct {
	errs []error
}

func (r *envReader) str(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return fallback
}

func (r *envReader) boolean(key string, fallback bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (r *envReader) integer(key string, fallback int) int {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (r *envReader) float(key string, fallback float64) float64 {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
