// Package config provides configuration management for Topical.
// Values come from three layers: built-in defaults, an optional YAML
// config file, and environment variables with the TOPICAL_ prefix.
// Later layers win, so an env var always overrides the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Topical service.
type Config struct {
	// DataPath is the directory for SQLite files and the cleanup journal.
	DataPath  string          `yaml:"data_path"`
	Server    ServerConfig    `yaml:"server"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Documents DocumentsConfig `yaml:"documents"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host      string  `yaml:"host"`       // Server host (default: 127.0.0.1)
	Port      int     `yaml:"port"`       // Server port (default: 7171)
	APIToken  string  `yaml:"api_token"`  // Bearer token; empty disables auth
	RateLimit float64 `yaml:"rate_limit"` // Requests/second per client; 0 disables limiting
	RateBurst int     `yaml:"rate_burst"` // Burst size for the per-client limiter
}

// MetadataConfig selects and configures the metadata store backend.
type MetadataConfig struct {
	Engine string `yaml:"engine"` // Metadata engine: sqlite, postgres (default: sqlite)
	DSN    string `yaml:"dsn"`    // Postgres DSN; required when engine is postgres
	Path   string `yaml:"path"`   // SQLite file path (default: {data_path}/metadata.db)
}

// DocumentsConfig configures the document store.
type DocumentsConfig struct {
	Path string `yaml:"path"` // SQLite file path (default: {data_path}/documents.db)
}

// LifecycleConfig tunes delete cleanup and reconciliation.
type LifecycleConfig struct {
	CleanupAttempts   int     `yaml:"cleanup_attempts"`   // DeleteCollection attempts before journaling (default: 3)
	CleanupBackoff    string  `yaml:"cleanup_backoff"`    // Pause between attempts (default: 100ms)
	ReconcileInterval string  `yaml:"reconcile_interval"` // Orphan scan interval (default: 5m)
	ScanRate          float64 `yaml:"scan_rate"`          // Store ops/second during scans (default: 50)
}

// CleanupBackoffDuration parses the cleanup backoff, falling back to the
// default on an unparsable value.
func (l LifecycleConfig) CleanupBackoffDuration() time.Duration {
	return parseDuration(l.CleanupBackoff, 100*time.Millisecond)
}

// ReconcileIntervalDuration parses the reconcile interval, falling back to
// the default on an unparsable value.
func (l LifecycleConfig) ReconcileIntervalDuration() time.Duration {
	return parseDuration(l.ReconcileInterval, 5*time.Minute)
}

// LoadConfig loads configuration from defaults and environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration from defaults, the given YAML file
// and environment variables, in that order of precedence. An empty path
// skips the file layer; a named file that does not exist is an error.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	// Derived defaults depend on the final DataPath.
	if cfg.Metadata.Path == "" {
		cfg.Metadata.Path = filepath.Join(cfg.DataPath, "metadata.db")
	}
	if cfg.Documents.Path == "" {
		cfg.Documents.Path = filepath.Join(cfg.DataPath, "documents.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Metadata.Engine {
	case "sqlite":
	case "postgres":
		if c.Metadata.DSN == "" {
			return errors.New("config: metadata engine postgres requires a DSN")
		}
	default:
		return fmt.Errorf("config: unknown metadata engine %q", c.Metadata.Engine)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}

	return nil
}

// defaultConfig is the bottom precedence layer.
func defaultConfig() *Config {
	return &Config{
		DataPath: "./data",
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      7171,
			RateLimit: 0,
			RateBurst: 20,
		},
		Metadata: MetadataConfig{
			Engine: "sqlite",
		},
		Lifecycle: LifecycleConfig{
			CleanupAttempts:   3,
			CleanupBackoff:    "100ms",
			ReconcileInterval: "5m",
			ScanRate:          50,
		},
	}
}

// applyEnv overlays TOPICAL_ environment variables on the config. The
// current value serves as each variable's default, which is what gives env
// the top precedence slot.
func applyEnv(cfg *Config) {
	cfg.DataPath = getEnv("TOPICAL_DATA_PATH", cfg.DataPath)

	cfg.Server.Host = getEnv("TOPICAL_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("TOPICAL_PORT", cfg.Server.Port)
	cfg.Server.APIToken = getEnv("TOPICAL_API_TOKEN", cfg.Server.APIToken)
	cfg.Server.RateLimit = getEnvFloat("TOPICAL_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateBurst = getEnvInt("TOPICAL_RATE_BURST", cfg.Server.RateBurst)

	cfg.Metadata.Engine = getEnv("TOPICAL_METADATA_ENGINE", cfg.Metadata.Engine)
	cfg.Metadata.DSN = getEnv("TOPICAL_METADATA_DSN", cfg.Metadata.DSN)
	cfg.Metadata.Path = getEnv("TOPICAL_METADATA_PATH", cfg.Metadata.Path)

	cfg.Documents.Path = getEnv("TOPICAL_DOCUMENTS_PATH", cfg.Documents.Path)

	cfg.Lifecycle.CleanupAttempts = getEnvInt("TOPICAL_CLEANUP_ATTEMPTS", cfg.Lifecycle.CleanupAttempts)
	cfg.Lifecycle.CleanupBackoff = getEnv("TOPICAL_CLEANUP_BACKOFF", cfg.Lifecycle.CleanupBackoff)
	cfg.Lifecycle.ReconcileInterval = getEnv("TOPICAL_RECONCILE_INTERVAL", cfg.Lifecycle.ReconcileInterval)
	cfg.Lifecycle.ScanRate = getEnvFloat("TOPICAL_SCAN_RATE", cfg.Lifecycle.ScanRate)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
