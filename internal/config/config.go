// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/ocms-pages/internal/scheduler"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Media backends.
const (
	MediaLocal = "local"
	MediaS3    = "s3"
)

// MinWebhookSecretLength is the minimum length of the webhook signing secret.
const MinWebhookSecretLength = 16

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver    string `env:"OCMS_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"OCMS_DB_PATH" envDefault:"./data/ocms-pages.db"`
	DatabaseURL string `env:"OCMS_DATABASE_URL"` // Postgres DSN when DBDriver is postgres
	ServerHost  string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort  int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	Env         string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel    string `env:"OCMS_LOG_LEVEL" envDefault:"info"`

	// API limits
	APIRate        float64 `env:"OCMS_API_RATE" envDefault:"50"` // Requests per second per tenant, 0 disables
	APIBurst       int     `env:"OCMS_API_BURST" envDefault:"100"`
	RequestTimeout int     `env:"OCMS_REQUEST_TIMEOUT" envDefault:"30"` // Seconds

	// Media storage
	MediaBackend string `env:"OCMS_MEDIA_BACKEND" envDefault:"local"`
	UploadsDir   string `env:"OCMS_UPLOADS_DIR" envDefault:"./uploads"`
	MediaBaseURL string `env:"OCMS_MEDIA_BASE_URL" envDefault:"/uploads"`
	S3Bucket     string `env:"OCMS_S3_BUCKET"`
	S3Prefix     string `env:"OCMS_S3_PREFIX"`
	S3Region     string `env:"OCMS_S3_REGION"`

	// Published snapshot cache
	RedisURL     string `env:"OCMS_REDIS_URL"`                             // Optional Redis URL for a shared cache
	CachePrefix  string `env:"OCMS_CACHE_PREFIX" envDefault:"ocms-pages:"` // Redis key prefix
	CacheTTL     int    `env:"OCMS_CACHE_TTL" envDefault:"3600"`           // Default cache TTL in seconds
	CacheMaxSize int    `env:"OCMS_CACHE_MAX_SIZE" envDefault:"10000"`     // Max memory cache entries

	// Webhooks
	WebhookURLs    []string `env:"OCMS_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret  string   `env:"OCMS_WEBHOOK_SECRET"`
	WebhookWorkers int      `env:"OCMS_WEBHOOK_WORKERS" envDefault:"3"`
	WebhookRate    float64  `env:"OCMS_WEBHOOK_RATE" envDefault:"10"` // Deliveries per second

	// Housekeeping
	DraftRetentionDays int    `env:"OCMS_DRAFT_RETENTION_DAYS" envDefault:"30"`
	DraftPurgeSchedule string `env:"OCMS_DRAFT_PURGE_SCHEDULE" envDefault:"17 3 * * *"`
	EventRetentionDays int    `env:"OCMS_EVENT_RETENTION_DAYS" envDefault:"90"`

	// Tracing
	OTELEndpoint    string  `env:"OCMS_OTEL_ENDPOINT"`
	OTELInsecure    bool    `env:"OCMS_OTEL_INSECURE" envDefault:"true"`
	OTELSampleRatio float64 `env:"OCMS_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// RequestTimeoutDuration returns the per-request timeout as a duration.
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// CacheTTLDuration returns the cache TTL as a duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// DraftRetention returns how long autosave drafts are kept.
func (c Config) DraftRetention() time.Duration {
	return time.Duration(c.DraftRetentionDays) * 24 * time.Hour
}

// EventRetention returns how long system events are kept.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.WebhookSecret != "" && !hasMinimumEntropy(cfg.WebhookSecret) {
		slog.Warn("OCMS_WEBHOOK_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// Validate checks driver and backend combinations.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("OCMS_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("OCMS_DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("OCMS_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}

	switch c.MediaBackend {
	case MediaLocal:
		if c.UploadsDir == "" {
			return fmt.Errorf("OCMS_UPLOADS_DIR is required for the local media backend")
		}
	case MediaS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("OCMS_S3_BUCKET is required for the s3 media backend")
		}
		if c.MediaBaseURL == "" || strings.HasPrefix(c.MediaBaseURL, "/") {
			return fmt.Errorf("OCMS_MEDIA_BASE_URL must be an absolute public URL for the s3 media backend")
		}
	default:
		return fmt.Errorf("OCMS_MEDIA_BACKEND must be %q or %q, got %q", MediaLocal, MediaS3, c.MediaBackend)
	}

	if len(c.WebhookURLs) > 0 && len(c.WebhookSecret) < MinWebhookSecretLength {
		return fmt.Errorf("OCMS_WEBHOOK_SECRET must be at least %d bytes when OCMS_WEBHOOK_URLS is set", MinWebhookSecretLength)
	}
	if c.WebhookWorkers < 1 {
		return fmt.Errorf("OCMS_WEBHOOK_WORKERS must be positive")
	}

	if c.APIRate < 0 || c.APIBurst < 1 {
		return fmt.Errorf("OCMS_API_RATE must not be negative and OCMS_API_BURST must be positive")
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("OCMS_REQUEST_TIMEOUT must be positive")
	}

	if c.DraftRetentionDays < 0 || c.EventRetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	if c.DraftRetentionDays > 0 {
		if err := scheduler.ValidateSchedule(c.DraftPurgeSchedule); err != nil {
			return fmt.Errorf("OCMS_DRAFT_PURGE_SCHEDULE: %w", err)
		}
	}

	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("OCMS_OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
