// Package config provides configuration management for urlconn.
// It loads settings from environment variables with sensible defaults and
// validates them before any handler is built.
//
// Environment Variables:
//
// Logging:
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path; empty logs to stderr (default: empty)
//
// Connections:
//   - URLCONN_PROXY: Proxy for every connection. Empty follows HTTP_PROXY/NO_PROXY,
//     "direct" disables proxies, otherwise http://, socks5:// or socks4:// host:port
//   - URLCONN_CONNECT_TIMEOUT: Dial timeout (default: 10s)
//   - URLCONN_READ_TIMEOUT: Whole-exchange timeout (default: 30s)
//   - URLCONN_FOLLOW_REDIRECTS: Follow redirects (default: true)
//   - URLCONN_MAX_IDLE_CONNS: Idle connections kept per connection transport (default: 10)
//   - URLCONN_USER_AGENT: User-Agent sent when none is set (default: urlconn/1.0)
//
// Circuit Breaker:
//   - URLCONN_BREAKER_ENABLED: Guard dials with a per-address breaker (default: true)
//   - URLCONN_BREAKER_MAX_FAILURES: Consecutive failures that open it (default: 3)
//   - URLCONN_BREAKER_TIMEOUT: Time the breaker stays open (default: 30s)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	stderrors "errors"
	"os"
	"strconv"
	"strings"
	"time"

	"urlconn/internal/common/errors"
	"urlconn/internal/common/validation"
)

// Config holds all configuration values for urlconn.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFile  string `env:"LOG_FILE"`

	Proxy           string        `env:"URLCONN_PROXY" validate:"proxy_setting"`
	ConnectTimeout  time.Duration `env:"URLCONN_CONNECT_TIMEOUT" validate:"min=1ms"`
	ReadTimeout     time.Duration `env:"URLCONN_READ_TIMEOUT" validate:"min=1ms"`
	FollowRedirects bool          `env:"URLCONN_FOLLOW_REDIRECTS"`
	MaxIdleConns    int           `env:"URLCONN_MAX_IDLE_CONNS" validate:"min=0,max=1000"`
	UserAgent       string        `env:"URLCONN_USER_AGENT" validate:"required"`

	BreakerEnabled     bool          `env:"URLCONN_BREAKER_ENABLED"`
	BreakerMaxFailures int           `env:"URLCONN_BREAKER_MAX_FAILURES" validate:"min=1"`
	BreakerTimeout     time.Duration `env:"URLCONN_BREAKER_TIMEOUT" validate:"min=1ms"`
}

// Load creates a new Config instance with values loaded from environment variables.
// Unset or unparsable variables fall back to their defaults; call Validate on
// the result before use.
func Load() *Config {
	return &Config{
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),

		Proxy:           getEnv("URLCONN_PROXY", ""),
		ConnectTimeout:  getDurationEnv("URLCONN_CONNECT_TIMEOUT", 10*time.Second),
		ReadTimeout:     getDurationEnv("URLCONN_READ_TIMEOUT", 30*time.Second),
		FollowRedirects: getBoolEnv("URLCONN_FOLLOW_REDIRECTS", true),
		MaxIdleConns:    getIntEnv("URLCONN_MAX_IDLE_CONNS", 10),
		UserAgent:       getEnv("URLCONN_USER_AGENT", "urlconn/1.0"),

		BreakerEnabled:     getBoolEnv("URLCONN_BREAKER_ENABLED", true),
		BreakerMaxFailures: getIntEnv("URLCONN_BREAKER_MAX_FAILURES", 3),
		BreakerTimeout:     getDurationEnv("URLCONN_BREAKER_TIMEOUT", 30*time.Second),
	}
}

// Validate checks every field against its validate tag. Errors name the
// environment variable that needs fixing.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c)
	if err == nil {
		return nil
	}

	msg := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		msg = appErr.Message
	}

	configErr := errors.ConfigError("invalid configuration: " + msg)
	configErr.Cause = err
	return configErr
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
