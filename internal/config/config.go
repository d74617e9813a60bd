// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// playerok
	Token          string
	GraphQLURL     string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestsPerSec float64

	// poller
	PollInterval time.Duration
	StrictErrors bool

	// default page size for chat message fetches without an explicit limit;
	// the poll drain always uses the unread counter instead
	MessagesLimit int

	// telegram bot
	BotToken    string
	BotPassword string

	// registry database
	RegistryPath string

	// nats (optional, empty disables publishing)
	NatsURL string

	// status server (0 disables)
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
// PLAYEROK_TOKEN and BOT_TOKEN are required.
func Load() (*Config, error) {
	cfg := &Config{
		Token:          getEnv("PLAYEROK_TOKEN", ""),
		GraphQLURL:     getEnv("PLAYEROK_GRAPHQL_URL", "https://playerok.com/graphql"),
		MaxRetries:     getEnvInt("PLAYEROK_MAX_RETRIES", 3),
		RetryDelay:     getEnvDuration("PLAYEROK_RETRY_DELAY", 2500*time.Millisecond),
		RequestsPerSec: getEnvFloat("PLAYEROK_RPS", 2.0),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 4*time.Second),
		MessagesLimit:  getEnvInt("MESSAGES_LIMIT", 100),
		StrictErrors:   getEnvBool("STRICT_ERRORS", false),
		BotToken:       getEnv("BOT_TOKEN", ""),
		BotPassword:    getEnv("BOT_PASSWORD", ""),
		RegistryPath:   getEnv("REGISTRY_PATH", "./storage/registry.db"),
		NatsURL:        getEnv("NATS_URL", ""),
		HTTPPort:       getEnvInt("HTTP_PORT", 3100),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", "./logs/bridge.log"),
	}

	if cfg.Token == "" {
		return nil, errors.New("PLAYEROK_TOKEN is required")
	}
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration returns the duration value of an environment variable or a default.
// Accepts Go duration syntax ("4s", "2500ms").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
