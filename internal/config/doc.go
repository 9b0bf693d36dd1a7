// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the ollama-tui application settings.
//
// Settings live in a TOML file, by default ~/.ollama_tui/config.toml. A
// missing file is not an error: built-in defaults are used.
//
// # Key Types
//
//   - Config: the complete settings tree
//   - Duration: a time.Duration that reads and writes as "250ms" in TOML
//   - ValidationError / ValidateErrors: field-level problems found by Validate
//
// # Configuration Precedence
//
// Highest first:
//   - command line flags (applied by the cli package)
//   - OLLAMA_TUI_URL, OLLAMA_TUI_MODEL, OLLAMA_TUI_DATA_DIR, OLLAMA_TUI_LOG_LEVEL
//   - OLLAMA_HOST (base URL only)
//   - the TOML file
//   - built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	client := ollama.NewClient(ollama.ClientConfig{
//	    BaseURL:       cfg.OllamaURL,
//	    MaxAttempts:   cfg.Retry.MaxAttempts,
//	    RetryDelay:    cfg.Retry.InitialBackoff.Duration,
//	    MaxRetryDelay: cfg.Retry.MaxBackoff.Duration,
//	})
//
// The per-model generation parameters (temperature, top_p, ...) are not part
// of this file. They are owned by the storage package as model_config.json.
package config
