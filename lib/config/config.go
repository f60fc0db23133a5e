// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/switchboardhq/switchboard/lib/history"
)

// Config is the master configuration for Switchboard.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Adapters configures the adapter registry.
	Adapters AdaptersConfig `yaml:"adapters"`

	// Defaults configures per-call fallbacks.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Log configures process logging.
	Log LogConfig `yaml:"log"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Switchboard data.
	Root string `yaml:"root"`

	// Conversations is where conversation logs live.
	Conversations string `yaml:"conversations"`

	// Archives is where exported conversation archives land.
	Archives string `yaml:"archives"`
}

// AdaptersConfig configures the adapter registry.
type AdaptersConfig struct {
	// File is the adapter configuration file. A default file is
	// synthesized there when none exists.
	File string `yaml:"file"`
}

// DefaultsConfig configures per-call fallbacks applied when a caller
// leaves the corresponding argument out.
type DefaultsConfig struct {
	// ContextMode selects which history rides along with a call.
	// One of: none, minimal, recent, smart, full.
	ContextMode string `yaml:"context_mode"`

	// MaxContextTokens caps the estimated size of selected history.
	// 0 means unlimited.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// LogConfig configures process logging.
type LogConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the default configuration: a working installation
// rooted at ~/.switchboard.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".switchboard")

	return &Config{
		Paths: PathsConfig{
			Root:          root,
			Conversations: filepath.Join(root, "conversations"),
			Archives:      filepath.Join(root, "archives"),
		},
		Adapters: AdaptersConfig{
			File: filepath.Join(root, "adapters.json"),
		},
		Defaults: DefaultsConfig{
			ContextMode: string(history.ModeSmart),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config file location used when neither the
// --config flag nor SWITCHBOARD_CONFIG selects one.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".switchboard", "config.yaml")
}

// Load loads configuration from SWITCHBOARD_CONFIG when set, else
// from the default path. A missing default file yields the defaults;
// a missing explicitly-configured file is an error.
func Load() (*Config, error) {
	if path := os.Getenv("SWITCHBOARD_CONFIG"); path != "" {
		return LoadFile(path)
	}
	path := DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. File values
// are merged over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. SWITCHBOARD_ROOT resolves to paths.root, so dependent paths
// can be written relative to it.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SWITCHBOARD_ROOT": c.Paths.Root,
		"HOME":             os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SWITCHBOARD_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Conversations = expandVars(c.Paths.Conversations, vars)
	c.Paths.Archives = expandVars(c.Paths.Archives, vars)
	c.Adapters.File = expandVars(c.Adapters.File, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Conversations == "" {
		errs = append(errs, fmt.Errorf("paths.conversations is required"))
	}
	if c.Paths.Archives == "" {
		errs = append(errs, fmt.Errorf("paths.archives is required"))
	}
	if c.Adapters.File == "" {
		errs = append(errs, fmt.Errorf("adapters.file is required"))
	}
	if _, err := history.ParseMode(c.Defaults.ContextMode); err != nil {
		errs = append(errs, fmt.Errorf("defaults.context_mode: %w", err))
	}
	if c.Defaults.MaxContextTokens < 0 {
		errs = append(errs, fmt.Errorf("defaults.max_context_tokens must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Conversations,
		c.Paths.Archives,
		filepath.Dir(c.Adapters.File),
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// ParseLevel maps a config log level string to a slog level. The
// empty string means info.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}

// Logger builds the process logger from the configured level. It
// writes to stderr: stdout belongs to the RPC stream.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
