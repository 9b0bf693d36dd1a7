// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ollama-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete ollama-tui configuration.
type Config struct {
	// OllamaURL is the base URL of the model server.
	OllamaURL string `toml:"ollama_url" validate:"required,url"`
	// DefaultModel is selected at startup.
	DefaultModel string `toml:"default_model" validate:"required"`
	// DataDir holds saved chats, model_config.json, prompt history and logs.
	DataDir string `toml:"data_dir" validate:"required"`

	Retry   RetryConfig   `toml:"retry"`
	Monitor MonitorConfig `toml:"monitor"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// RetryConfig bounds the retries of the initial connection to the backend.
// Retries never happen once a stream has started.
type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
}

// MonitorConfig controls the resource sampler.
type MonitorConfig struct {
	// Interval is the sampling period.
	Interval Duration `toml:"interval"`
	// Timeout bounds a single sample. It must not exceed Interval.
	Timeout      Duration `toml:"timeout"`
	MaxProcesses int      `toml:"max_processes" validate:"min=1,max=1000"`
	// GPURefresh limits how often nvidia-smi is executed.
	GPURefresh Duration `toml:"gpu_refresh"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	VimMode  bool `toml:"vim_mode"`
	Markdown bool `toml:"markdown"`
	// MaxFPS caps redraws while tokens stream in.
	MaxFPS int `toml:"max_fps" validate:"min=1,max=120"`
	// QuitTimeout bounds how long quit waits for a cancelled generation.
	QuitTimeout Duration `toml:"quit_timeout"`
	// StatusTTL is how long a status message stays visible.
	StatusTTL Duration `toml:"status_ttl"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	// File defaults to <data_dir>/ollama-tui.log.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"min=1"`
	MaxBackups int    `toml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"min=0"`
	Compress   bool   `toml:"compress"`
}

// Duration wraps time.Duration so it can be written as "250ms" in TOML.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration { return Duration{d} }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultOllamaURL = "http://localhost:11434"
	DefaultModel     = "llama2:latest"
)

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	dir, err := DefaultDir()
	if err != nil {
		dir = ".ollama_tui"
	}
	return &Config{
		OllamaURL:    DefaultOllamaURL,
		DefaultModel: DefaultModel,
		DataDir:      dir,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: D(250 * time.Millisecond),
			MaxBackoff:     D(2 * time.Second),
		},
		Monitor: MonitorConfig{
			Interval:     D(100 * time.Millisecond),
			Timeout:      D(80 * time.Millisecond),
			MaxProcesses: 50,
			GPURefresh:   D(time.Second),
		},
		UI: UIConfig{
			VimMode:     true,
			Markdown:    true,
			MaxFPS:      30,
			QuitTimeout: D(2 * time.Second),
			StatusTTL:   D(5 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// DefaultDir returns ~/.ollama_tui.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollama_tui"), nil
}

// DefaultPath returns ~/.ollama_tui/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ChatsDir is the directory holding one JSON file per saved session.
func (c *Config) ChatsDir() string { return filepath.Join(c.DataDir, "chats") }

// ModelConfigPath is the generation parameter file.
func (c *Config) ModelConfigPath() string { return filepath.Join(c.DataDir, "model_config.json") }

// HistoryDBPath is the SQLite prompt history database.
func (c *Config) HistoryDBPath() string { return filepath.Join(c.DataDir, "history.db") }

// LogFile returns the configured log file or the default inside DataDir.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "ollama-tui.log")
}

// expandHome turns a leading "~" into the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides and validates the result. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values left by a partial file and normalises paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.OllamaURL == "" {
		c.OllamaURL = d.OllamaURL
	}
	c.OllamaURL = strings.TrimRight(c.OllamaURL, "/")
	if c.DefaultModel == "" {
		c.DefaultModel = d.DefaultModel
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	c.DataDir = expandHome(c.DataDir)
	c.Log.File = expandHome(c.Log.File)

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoff.Duration == 0 {
		c.Retry.InitialBackoff = d.Retry.InitialBackoff
	}
	if c.Retry.MaxBackoff.Duration == 0 {
		c.Retry.MaxBackoff = d.Retry.MaxBackoff
	}
	if c.Monitor.Interval.Duration == 0 {
		c.Monitor.Interval = d.Monitor.Interval
	}
	if c.Monitor.Timeout.Duration == 0 {
		c.Monitor.Timeout = d.Monitor.Timeout
	}
	if c.Monitor.MaxProcesses == 0 {
		c.Monitor.MaxProcesses = d.Monitor.MaxProcesses
	}
	if c.Monitor.GPURefresh.Duration == 0 {
		c.Monitor.GPURefresh = d.Monitor.GPURefresh
	}
	if c.UI.MaxFPS == 0 {
		c.UI.MaxFPS = d.UI.MaxFPS
	}
	if c.UI.QuitTimeout.Duration == 0 {
		c.UI.QuitTimeout = d.UI.QuitTimeout
	}
	if c.UI.StatusTTL.Duration == 0 {
		c.UI.StatusTTL = d.UI.StatusTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
}

// Save writes cfg as TOML to path, atomically.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ollama-tui configuration file\n")
	buf.WriteString("# Generation parameters live in model_config.json next to this file.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
