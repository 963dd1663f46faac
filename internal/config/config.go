// Package config loads application settings from environment variables,
// mapped onto a struct with envconfig. All variables carry the PANTRY prefix.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application settings.
type Config struct {
	// --- Server ---
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// --- Database ---
	DBPath string `envconfig:"DB_PATH" default:"pantrypoints.db"`

	// --- Rate limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Ledger archive ---
	ArchiveEnabled    bool          `envconfig:"ARCHIVE_ENABLED" default:"false"`
	ArchiveInterval   time.Duration `envconfig:"ARCHIVE_INTERVAL" default:"24h"`
	ArchivePassphrase string        `envconfig:"ARCHIVE_PASSPHRASE"`
	S3Endpoint        string        `envconfig:"S3_ENDPOINT"`
	S3Bucket          string        `envconfig:"S3_BUCKET"`
	S3Region          string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey       string        `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey       string        `envconfig:"S3_SECRET_KEY"`
}

func (c *Config) Validate() error {
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("PANTRY_RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.ArchiveInterval <= 0 {
		return fmt.Errorf("PANTRY_ARCHIVE_INTERVAL must be > 0")
	}
	if c.ArchiveEnabled && c.ArchivePassphrase == "" {
		return fmt.Errorf("PANTRY_ARCHIVE_PASSPHRASE is required when the archive is enabled")
	}
	if c.ArchiveEnabled && (c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("S3 bucket and credentials are required when the archive is enabled")
	}
	return nil
}

// Load reads environment variables into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PANTRY", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
