package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PLAYEROK_TOKEN", "test-token")
	t.Setenv("BOT_TOKEN", "test-bot-token")
}

func TestConfig_Defaults(t *testing.T) {
	setRequired(t)
	os.Unsetenv("POLL_INTERVAL")
	os.Unsetenv("PLAYEROK_MAX_RETRIES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PollInterval != 4*time.Second {
		t.Errorf("PollInterval = %v, want 4s", cfg.PollInterval)
	}
	if cfg.RetryDelay != 2500*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 2.5s", cfg.RetryDelay)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.StrictErrors {
		t.Error("StrictErrors should default to false")
	}
	if cfg.GraphQLURL != "https://playerok.com/graphql" {
		t.Errorf("GraphQLURL = %q", cfg.GraphQLURL)
	}
}

func TestConfig_FromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("STRICT_ERRORS", "true")
	t.Setenv("HTTP_PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
	if !cfg.StrictErrors {
		t.Error("StrictErrors = false, want true")
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
}

func TestConfig_MissingToken(t *testing.T) {
	t.Setenv("PLAYEROK_TOKEN", "")
	t.Setenv("BOT_TOKEN", "x")
	os.Unsetenv("PLAYEROK_TOKEN")

	if _, err := Load(); err == nil {
		t.Error("Load() should fail without PLAYEROK_TOKEN")
	}
}
