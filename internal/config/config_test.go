package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "pantrypoints.db" {
		t.Errorf("db path = %q, want pantrypoints.db", cfg.DBPath)
	}
	if cfg.ArchiveEnabled {
		t.Error("archive should default to disabled")
	}
	if cfg.ArchiveInterval != 24*time.Hour {
		t.Errorf("archive interval = %v, want 24h", cfg.ArchiveInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PANTRY_PORT", "9000")
	t.Setenv("PANTRY_DB_PATH", "/tmp/test.db")
	t.Setenv("PANTRY_RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Port)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("db path = %q, want /tmp/test.db", cfg.DBPath)
	}
	if cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit window = %v, want 30s", cfg.RateLimitWindow)
	}
}

func TestLoadArchiveValidation(t *testing.T) {
	t.Setenv("PANTRY_ARCHIVE_ENABLED", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error: archive enabled without passphrase")
	}

	t.Setenv("PANTRY_ARCHIVE_PASSPHRASE", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error: archive enabled without S3 credentials")
	}

	t.Setenv("PANTRY_S3_BUCKET", "ledger-archives")
	t.Setenv("PANTRY_S3_ACCESS_KEY", "key")
	t.Setenv("PANTRY_S3_SECRET_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.ArchiveEnabled {
		t.Error("expected archive enabled")
	}
}
