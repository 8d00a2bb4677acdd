package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here

	cfg, err := Load([]string{"--jwt-secret", testSecret})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.TokenTTL != 30*24*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("AMQP should be disabled by default, got %q", cfg.AMQPURL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WOLLS_JWT_SECRET", testSecret)
	t.Setenv("WOLLS_DB_PATH", "/tmp/other.db")
	t.Setenv("WOLLS_LOG_FORMAT", "json")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" || cfg.LogFormat != "json" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(nil); err == nil || !strings.Contains(err.Error(), "JWT secret is required") {
		t.Errorf("expected missing secret error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Addr: ":8080", DBPath: "x.db", JWTSecret: testSecret, TokenTTL: time.Hour,
			MinPasswordLength: 8, LogLevel: "info", LogFormat: "text",
			ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second, ShutdownTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 16"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://broker" }, "scheme"},
		{"amqp without exchange", func(c *Config) { c.AMQPURL = "amqp://broker"; c.AMQPExchange = "" }, "exchange"},
		{"zero timeout", func(c *Config) { c.ReadTimeout = 0 }, "read timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
