/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables,
// optionally overlaid by a YAML file (CADENCE_CONFIG_FILE).
type Config struct {
	Environment string          `yaml:"environment"`
	HTTPBind    string          `yaml:"http_bind"`
	HTTPPort    int             `yaml:"http_port"`
	BaseURL     string          `yaml:"base_url"` // Public base URL (e.g., https://cadence.example.com)
	DBBackend   DatabaseBackend `yaml:"db_backend"`
	DBDSN       string          `yaml:"db_dsn"`

	JWTSigningKey   string `yaml:"jwt_signing_key"`
	MetricsBind     string `yaml:"metrics_bind"`
	MaxUploadSizeMB int    `yaml:"max_upload_size_mb"` // Optional multipart upload limit override (MB)

	// Slot calculation
	Timezone string `yaml:"timezone"` // IANA name for slot arithmetic (default UTC)

	// Scheduler loop
	SchedulerInterval   time.Duration `yaml:"scheduler_interval"`
	SchedulerQueueDepth int           `yaml:"scheduler_queue_depth"` // scheduled posts to keep per account

	// Make.com workflow integration
	MakeWebhookURL string `yaml:"make_webhook_url"` // outbound scenario trigger URL
	WebhookSecret  string `yaml:"webhook_secret"`   // shared secret for inbound callbacks
	CronSecret     string `yaml:"cron_secret"`      // shared secret for cron endpoints

	// Media storage
	UploadRoot string `yaml:"upload_root"` // filesystem storage root

	// S3 Object Storage configuration
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3Region          string `yaml:"s3_region"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3Endpoint        string `yaml:"s3_endpoint"`        // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string `yaml:"s3_public_base_url"` // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   `yaml:"s3_use_path_style"`  // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`

	// Multi-instance configuration
	LeaderElectionEnabled bool   `yaml:"leader_election_enabled"`
	RedisAddr             string `yaml:"redis_addr"`
	RedisPassword         string `yaml:"redis_password"`
	RedisDB               int    `yaml:"redis_db"`
	InstanceID            string `yaml:"instance_id"`

	// Event bus configuration
	NATSURL string `yaml:"nats_url"` // empty keeps events in-process
}

// Load reads environment variables, applies the optional YAML overlay and
// defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("CADENCE_ENV", "development"),
		HTTPBind:    getEnv("CADENCE_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("CADENCE_HTTP_PORT", 8080),
		BaseURL:     getEnv("CADENCE_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("CADENCE_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:       getEnv("CADENCE_DB_DSN", ""),

		JWTSigningKey:   getEnv("CADENCE_JWT_SIGNING_KEY", ""),
		MetricsBind:     getEnv("CADENCE_METRICS_BIND", "127.0.0.1:9000"),
		MaxUploadSizeMB: getEnvInt("CADENCE_MAX_UPLOAD_SIZE_MB", 0),

		Timezone: getEnv("CADENCE_TIMEZONE", "UTC"),

		SchedulerInterval:   time.Duration(getEnvInt("CADENCE_SCHEDULER_INTERVAL_SECONDS", 300)) * time.Second,
		SchedulerQueueDepth: getEnvInt("CADENCE_SCHEDULER_QUEUE_DEPTH", 5),

		MakeWebhookURL: getEnv("CADENCE_MAKE_WEBHOOK_URL", ""),
		WebhookSecret:  getEnv("CADENCE_WEBHOOK_SECRET", ""),
		CronSecret:     getEnv("CADENCE_CRON_SECRET", ""),

		UploadRoot: getEnv("CADENCE_UPLOAD_ROOT", "./uploads"),

		S3AccessKeyID:     getEnvAny([]string{"CADENCE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"CADENCE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"CADENCE_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"CADENCE_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"CADENCE_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3PublicBaseURL:   getEnvAny([]string{"CADENCE_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, ""),
		S3UsePathStyle:    getEnvBool("CADENCE_S3_USE_PATH_STYLE", false),

		TracingEnabled:    getEnvBool("CADENCE_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("CADENCE_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("CADENCE_TRACING_SAMPLE_RATE", 1.0),

		LeaderElectionEnabled: getEnvBool("CADENCE_LEADER_ELECTION_ENABLED", false),
		RedisAddr:             getEnv("CADENCE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("CADENCE_REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("CADENCE_REDIS_DB", 0),
		InstanceID:            getEnv("CADENCE_INSTANCE_ID", ""),

		NATSURL: getEnv("CADENCE_NATS_URL", ""),
	}

	if path := os.Getenv("CADENCE_CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("CADENCE_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("CADENCE_JWT_SIGNING_KEY must be provided")
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid CADENCE_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.WebhookSecret == "" {
			return nil, fmt.Errorf("CADENCE_WEBHOOK_SECRET must be set in production")
		}
		if cfg.CronSecret == "" {
			return nil, fmt.Errorf("CADENCE_CRON_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// overlayFile merges values from a YAML file over the current configuration.
// The file wins over environment values for every key it sets.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// DefaultMaxUploadSizeMB applies when no upload limit is configured.
const DefaultMaxUploadSizeMB = 10

// MaxUploadSizeBytes returns the upload limit in bytes, falling back to
// DefaultMaxUploadSizeMB when the limit is unset or non-positive.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return DefaultMaxUploadSizeMB * 1024 * 1024
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
