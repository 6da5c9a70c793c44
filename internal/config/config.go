package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server      ServerConfig
	Registry    RegistryConfig
	Journal     JournalConfig
	DB          DatabaseConfig
	Logging     LoggingConfig
	RateLimit   RateLimitConfig
	EventBuffer int
}

type ServerConfig struct {
	Host string
	Port int
}

// RegistryConfig carries the single privileged coordinator identity. It is
// fixed at startup and never changes while the service runs.
type RegistryConfig struct {
	CoordinatorID string
}

type JournalConfig struct {
	Writers int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

type RateLimitConfig struct {
	RPS   int
	Burst int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Registry: RegistryConfig{
			CoordinatorID: getEnv("COORDINATOR_ID", ""),
		},
		Journal: JournalConfig{
			Writers: getEnvInt("JOURNAL_WRITERS", 2),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/relief-registry.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvInt("RATE_LIMIT_RPS", 20),
			Burst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
		EventBuffer: getEnvInt("EVENT_BUFFER_SIZE", 100),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Registry.CoordinatorID == "" {
		return fmt.Errorf("COORDINATOR_ID must be set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Journal.Writers < 1 {
		return fmt.Errorf("journal writers must be at least 1, got %d", c.Journal.Writers)
	}
	if c.RateLimit.RPS < 1 {
		return fmt.Errorf("rate limit rps must be at least 1, got %d", c.RateLimit.RPS)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
