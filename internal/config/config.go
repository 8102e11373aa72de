// Package config loads the docstore configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docstore/internal/dialect"
)

// Defaults used when the file or a field is absent.
const (
	DefaultDriver   = "sqlite3"
	DefaultDSN      = "docstore.db"
	DefaultLogLevel = "warn"
)

// Config is the on-disk configuration:
//
//	driver: sqlite3
//	dsn: data/app.db
//	documents: documents.cue
//	log_level: info
//	auto_create_schema: true
type Config struct {
	// Driver is the database/sql driver name: sqlite3 or pgx.
	Driver string `yaml:"driver"`

	// DSN is the data source name handed to the driver.
	DSN string `yaml:"dsn"`

	// Documents is a CUE catalog file or directory. Relative paths are
	// resolved against the config file's directory.
	Documents string `yaml:"documents,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`

	// AutoCreateSchema applies the schema whenever the store is opened.
	AutoCreateSchema bool `yaml:"auto_create_schema"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Driver:           DefaultDriver,
		DSN:              DefaultDSN,
		LogLevel:         DefaultLogLevel,
		AutoCreateSchema: true,
	}
}

// Load reads a YAML config file. Unknown fields are rejected; missing
// fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Documents != "" && !filepath.IsAbs(cfg.Documents) {
		cfg.Documents = filepath.Join(filepath.Dir(path), cfg.Documents)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the driver has a dialect and the log level parses.
func (c *Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if _, err := dialect.ForDriver(c.Driver); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
