// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/artpar/typedwire/core/convention"
)

// Config is the root configuration structure.
type Config struct {
	Schemas SchemasConfig `yaml:"schemas"`
	Codec   CodecConfig   `yaml:"codec"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SchemasConfig locates the YAML message definitions.
type SchemasConfig struct {
	Dirs  []string `yaml:"dirs"`
	Watch bool     `yaml:"watch"` // reload types when a definition file changes
}

// CodecConfig configures the wire format used by default.
type CodecConfig struct {
	Format string `yaml:"format"` // "json" or "yaml"
	Pretty bool   `yaml:"pretty"`
}

// ArchiveConfig configures the message archive.
type ArchiveConfig struct {
	DSN    string `yaml:"dsn"`
	Format string `yaml:"format"` // wire format of stored payloads
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from a YAML file. Relative schema directories
// are resolved against the directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	base := filepath.Dir(path)
	for i, dir := range cfg.Schemas.Dirs {
		if dir != "" && !filepath.IsAbs(dir) {
			cfg.Schemas.Dirs[i] = filepath.Join(base, dir)
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	TYPEDWIRE_SCHEMA_DIRS       - Definition directories, comma separated (required)
//	TYPEDWIRE_SCHEMA_WATCH      - Reload on definition changes (default: false)
//	TYPEDWIRE_CODEC_FORMAT      - Default wire format: json or yaml (default: json)
//	TYPEDWIRE_CODEC_PRETTY      - Indent payloads (default: false)
//	TYPEDWIRE_ARCHIVE_DSN       - Archive database path (default: typedwire.db)
//	TYPEDWIRE_ARCHIVE_FORMAT    - Wire format of stored payloads (default: codec format)
//	TYPEDWIRE_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	TYPEDWIRE_LOG_FORMAT        - Log format: json or console (default: console)
//	TYPEDWIRE_METRICS_ENABLED   - Collect codec metrics (default: false)
//	TYPEDWIRE_METRICS_NAMESPACE - Metric name prefix (default: typedwire)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TYPEDWIRE_SCHEMA_DIRS")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("TYPEDWIRE_SCHEMA_DIRS") != ""
}

// applyEnvOverrides applies TYPEDWIRE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Schema configuration
	if v := os.Getenv("TYPEDWIRE_SCHEMA_DIRS"); v != "" {
		cfg.Schemas.Dirs = splitList(v)
	}
	if v := os.Getenv("TYPEDWIRE_SCHEMA_WATCH"); v != "" {
		cfg.Schemas.Watch = parseBool(v)
	}

	// Codec configuration
	if v := os.Getenv("TYPEDWIRE_CODEC_FORMAT"); v != "" {
		cfg.Codec.Format = v
	}
	if v := os.Getenv("TYPEDWIRE_CODEC_PRETTY"); v != "" {
		cfg.Codec.Pretty = parseBool(v)
	}

	// Archive configuration
	if v := os.Getenv("TYPEDWIRE_ARCHIVE_DSN"); v != "" {
		cfg.Archive.DSN = v
	}
	if v := os.Getenv("TYPEDWIRE_ARCHIVE_FORMAT"); v != "" {
		cfg.Archive.Format = v
	}

	// Logging configuration
	if v := os.Getenv("TYPEDWIRE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TYPEDWIRE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("TYPEDWIRE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TYPEDWIRE_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Codec.Format == "" {
		cfg.Codec.Format = "json"
	}

	if cfg.Archive.DSN == "" {
		cfg.Archive.DSN = "typedwire.db"
	}
	if cfg.Archive.Format == "" {
		cfg.Archive.Format = cfg.Codec.Format
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "typedwire"
	}
}

var validFormats = map[string]bool{"json": true, "yaml": true}

func validate(cfg *Config) error {
	if len(cfg.Schemas.Dirs) == 0 {
		return fmt.Errorf("schemas.dirs is required")
	}
	for i, dir := range cfg.Schemas.Dirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("schemas.dirs[%d] is empty", i)
		}
	}

	if !validFormats[cfg.Codec.Format] {
		return fmt.Errorf("codec.format must be 'json' or 'yaml', got %q", cfg.Codec.Format)
	}
	if !validFormats[cfg.Archive.Format] {
		return fmt.Errorf("archive.format must be 'json' or 'yaml', got %q", cfg.Archive.Format)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !convention.IsIdentifier(cfg.Metrics.Namespace) {
		return fmt.Errorf("metrics.namespace %q is not a valid metric name prefix", cfg.Metrics.Namespace)
	}

	return nil
}
