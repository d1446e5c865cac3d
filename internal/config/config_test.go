package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7171 {
		t.Errorf("expected default port 7171, got %d", cfg.Server.Port)
	}
	if cfg.Metadata.Engine != "sqlite" {
		t.Errorf("expected default engine sqlite, got %s", cfg.Metadata.Engine)
	}
	if cfg.Metadata.Path != filepath.Join("./data", "metadata.db") {
		t.Errorf("unexpected derived metadata path %s", cfg.Metadata.Path)
	}
	if cfg.Documents.Path != filepath.Join("./data", "documents.db") {
		t.Errorf("unexpected derived documents path %s", cfg.Documents.Path)
	}
	if cfg.Lifecycle.CleanupAttempts != 3 {
		t.Errorf("expected 3 cleanup attempts, got %d", cfg.Lifecycle.CleanupAttempts)
	}
	if got := cfg.Lifecycle.ReconcileIntervalDuration(); got != 5*time.Minute {
		t.Errorf("expected 5m reconcile interval, got %s", got)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TOPICAL_PORT", "9000")
	t.Setenv("TOPICAL_METADATA_ENGINE", "postgres")
	t.Setenv("TOPICAL_METADATA_DSN", "postgres://localhost/topical")
	t.Setenv("TOPICAL_CLEANUP_BACKOFF", "250ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Metadata.Engine != "postgres" {
		t.Errorf("expected engine postgres, got %s", cfg.Metadata.Engine)
	}
	if got := cfg.Lifecycle.CleanupBackoffDuration(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms backoff, got %s", got)
	}
}

func TestLoadConfigFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topical.yaml")
	content := `
data_path: /var/lib/topical
server:
  port: 8080
  rate_limit: 25
lifecycle:
  cleanup_attempts: 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Env beats file, file beats defaults.
	t.Setenv("TOPICAL_PORT", "9999")

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("env should override file: expected 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit != 25 {
		t.Errorf("expected rate limit 25 from file, got %f", cfg.Server.RateLimit)
	}
	if cfg.Lifecycle.CleanupAttempts != 5 {
		t.Errorf("expected 5 cleanup attempts from file, got %d", cfg.Lifecycle.CleanupAttempts)
	}
	if cfg.Metadata.Path != filepath.Join("/var/lib/topical", "metadata.db") {
		t.Errorf("derived path should follow file data_path, got %s", cfg.Metadata.Path)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"postgres without dsn", func(c *Config) { c.Metadata.Engine = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Metadata.Engine = "postgres"
			c.Metadata.DSN = "postgres://localhost/topical"
		}, false},
		{"unknown engine", func(c *Config) { c.Metadata.Engine = "mongo" }, true},
		{"bad port", func(c *Config) { c.Server.Port = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TOPICAL_TEST_STR", "value")
	t.Setenv("TOPICAL_TEST_INT", "42")
	t.Setenv("TOPICAL_TEST_BAD_INT", "not-a-number")
	t.Setenv("TOPICAL_TEST_FLOAT", "2.5")

	if got := getEnv("TOPICAL_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv: expected value, got %s", got)
	}
	if got := getEnv("TOPICAL_TEST_ABSENT", "fallback"); got != "fallback" {
		t.Errorf("getEnv: expected fallback, got %s", got)
	}
	if got := getEnvInt("TOPICAL_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt: expected 42, got %d", got)
	}
	if got := getEnvInt("TOPICAL_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt: expected fallback 7, got %d", got)
	}
	if got := getEnvFloat("TOPICAL_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvFloat: expected 2.5, got %f", got)
	}
}
