// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/util"
)

// ConfigStore reads and writes model_config.json.
type ConfigStore struct {
	path string
	log  *zap.Logger
}

// NewConfigStore returns a store for the file at path.
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path, log: logging.Named("storage")}
}

// Path returns the file location.
func (s *ConfigStore) Path() string { return s.path }

// Load reads the parameters. A missing file yields the defaults. Fields
// missing from the file keep their default values. Out-of-range values are
// clamped and reported in the returned corrections, which are also logged.
func (s *ConfigStore) Load() (model.ModelConfig, []model.Correction, error) {
	cfg := model.DefaultModelConfig()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil, nil
	}
	if err != nil {
		return cfg, nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.DefaultModelConfig(), nil, &StorageError{Op: "decode", Path: s.path, Err: err}
	}

	corrections := cfg.Clamp()
	for _, c := range corrections {
		s.log.Warn("model config value corrected on load",
			zap.String("field", c.Field.String()), zap.String("from", c.From), zap.String("to", c.To))
	}
	return cfg, corrections, nil
}

// Save clamps a copy of cfg and writes it. The stored file never holds an
// out-of-range value.
func (s *ConfigStore) Save(cfg model.ModelConfig) error {
	cfg.Clamp()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := util.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
