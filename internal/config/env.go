// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"strings"
)

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMA_HOST: the server address used by the ollama CLI itself
//   - OLLAMA_TUI_URL: overrides ollama_url (wins over OLLAMA_HOST)
//   - OLLAMA_TUI_MODEL: overrides default_model
//   - OLLAMA_TUI_DATA_DIR: overrides data_dir
//   - OLLAMA_TUI_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.OllamaURL = hostToURL(host)
	}
	if url := os.Getenv("OLLAMA_TUI_URL"); url != "" {
		c.OllamaURL = url
	}
	if model := os.Getenv("OLLAMA_TUI_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dir := os.Getenv("OLLAMA_TUI_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if level := os.Getenv("OLLAMA_TUI_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// hostToURL accepts the "host:port" form ollama uses and adds a scheme.
func hostToURL(host string) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if strings.HasPrefix(host, "0.0.0.0") {
		host = "localhost" + strings.TrimPrefix(host, "0.0.0.0")
	}
	if !strings.Contains(host, ":") {
		host += ":11434"
	}
	return "http://" + host
}
