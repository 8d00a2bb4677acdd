// Package config loads server settings from flags, WOLLS_* environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

// EnvPrefix is prepended to flag names to form environment variables,
// e.g. --db-path becomes WOLLS_DB_PATH.
const EnvPrefix = "WOLLS"

// Config holds all server settings.
type Config struct {
	// HTTP server
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Database
	DBPath string

	// Auth
	JWTSecret         string
	TokenTTL          time.Duration
	MinPasswordLength int

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP event publishing; disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
}

// Load parses args (without the program name) into a Config.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment win over it.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	fs := ff.NewFlagSet("wolls")
	var (
		addr              = fs.StringLong("addr", ":8080", "HTTP listen address")
		readTimeout       = fs.DurationLong("read-timeout", 10*time.Second, "HTTP read timeout")
		writeTimeout      = fs.DurationLong("write-timeout", 30*time.Second, "HTTP write timeout")
		idleTimeout       = fs.DurationLong("idle-timeout", 60*time.Second, "HTTP idle timeout")
		shutdownTimeout   = fs.DurationLong("shutdown-timeout", 15*time.Second, "Graceful shutdown timeout")
		dbPath            = fs.StringLong("db-path", "./data/wolls.db", "SQLite database file")
		jwtSecret         = fs.StringLong("jwt-secret", "", "Secret used to sign session tokens (required)")
		tokenTTL          = fs.DurationLong("token-ttl", 30*24*time.Hour, "Session token lifetime")
		minPasswordLength = fs.IntLong("min-password-length", 8, "Minimum password length")
		logLevel          = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logFormat         = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		amqpURL           = fs.StringLong("amqp-url", "", "AMQP broker URL for change events (optional)")
		amqpExchange      = fs.StringLong("amqp-exchange", "wolls.events", "AMQP topic exchange")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvPrefix),
	); err != nil {
		return nil, fmt.Errorf("%w\n\n%s", err, ffhelp.Flags(fs))
	}

	cfg := &Config{
		Addr:              *addr,
		ReadTimeout:       *readTimeout,
		WriteTimeout:      *writeTimeout,
		IdleTimeout:       *idleTimeout,
		ShutdownTimeout:   *shutdownTimeout,
		DBPath:            *dbPath,
		JWTSecret:         *jwtSecret,
		TokenTTL:          *tokenTTL,
		MinPasswordLength: *minPasswordLength,
		LogLevel:          *logLevel,
		LogFormat:         *logFormat,
		AMQPURL:           *amqpURL,
		AMQPExchange:      *amqpExchange,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "listen address cannot be empty")
	}
	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT secret is required (--jwt-secret or "+EnvPrefix+"_JWT_SECRET)")
	} else if len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT secret must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, fmt.Sprintf("invalid token TTL %v: must be positive", c.TokenTTL))
	}
	if c.MinPasswordLength < 6 {
		problems = append(problems, fmt.Sprintf("invalid minimum password length %d: must be at least 6", c.MinPasswordLength))
	}

	for name, d := range map[string]time.Duration{
		"read timeout":     c.ReadTimeout,
		"write timeout":    c.WriteTimeout,
		"idle timeout":     c.IdleTimeout,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("invalid %s %v: must be positive", name, d))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
