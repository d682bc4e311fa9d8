package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/covenant/internal/engine"
)

// FileConfig is the covenant.yaml configuration file.
//
//	checks:
//	  require: true
//	  ensure: true
//	  invariant: false
//	limit: "Stack|Queue"
//	journal: ./covenant.db
//	log_level: info
type FileConfig struct {
	Checks   ChecksConfig `yaml:"checks"`
	Limit    string       `yaml:"limit"`
	Journal  string       `yaml:"journal"`
	LogLevel string       `yaml:"log_level"`
}

// ChecksConfig switches the contract categories. Unset means enabled.
type ChecksConfig struct {
	Require   *bool `yaml:"require"`
	Ensure    *bool `yaml:"ensure"`
	Invariant *bool `yaml:"invariant"`
}

// LoadFileConfig reads and validates a config file. Unknown fields are
// rejected.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if _, err := cfg.EngineConfig(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// EngineConfig converts the file into an engine configuration.
func (c FileConfig) EngineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if c.Checks.Require != nil {
		cfg.Require = *c.Checks.Require
	}
	if c.Checks.Ensure != nil {
		cfg.Ensure = *c.Checks.Ensure
	}
	if c.Checks.Invariant != nil {
		cfg.Invariant = *c.Checks.Invariant
	}
	if c.Limit != "" {
		re, err := engine.CompileLimit(c.Limit)
		if err != nil {
			return engine.Config{}, err
		}
		cfg.Limit = re
	}
	return cfg, nil
}

// Level returns the configured log level, warn when unset.
func (c FileConfig) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log_level %q", s)
}
