package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Base address of the external stats-producing service.
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// Optional shared snapshot store; in-memory when empty.
	RedisURL string
	// Optional long-term window archive; disabled when empty.
	DatabaseURL string

	// Poll cycle for pulling stats from upstream; 0 disables the poller
	// (ingestion then happens only via the push endpoint).
	PollInterval time.Duration

	// Host advertised to dashboard clients for the live update stream.
	// Falls back to the request host when empty.
	PublicHost string

	MaxClientsPerScope int
}

func Load() (*Config, error) {
	upstreamTimeout, err := getDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getDuration("POLL_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	maxClients, err := getInt("MAX_CLIENTS_PER_SCOPE", 64)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		UpstreamBaseURL:    getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamTimeout:    upstreamTimeout,
		RedisURL:           getEnv("REDIS_URL", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		PollInterval:       pollInterval,
		PublicHost:         getEnv("PUBLIC_HOST", ""),
		MaxClientsPerScope: maxClients,
	}

	if cfg.UpstreamBaseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	parsed, err := url.Parse(cfg.UpstreamBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL must be an absolute URL, got %q", cfg.UpstreamBaseURL)
	}

	if cfg.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if cfg.MaxClientsPerScope <= 0 {
		return nil, fmt.Errorf("MAX_CLIENTS_PER_SCOPE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. \"30s\"): %w", key, err)
	}
	return parsed, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}
