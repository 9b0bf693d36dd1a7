// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// findOllamaExecutable looks in PATH, then in the platform's usual
// install locations.
func findOllamaExecutable() (string, error) {
	for _, name := range executableNames() {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, p := range candidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ollama not found in PATH or common installation directories")
}

// StartServer launches `ollama serve` in the background when nothing
// answers at the base URL, then polls until it does or wait elapses. The
// server keeps running after this process exits.
func (c *Client) StartServer(ctx context.Context, wait time.Duration) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}

	path, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "failed to find Ollama executable", Cause: err}
	}

	cmd := exec.Command(path, "serve")
	cmd.Env = os.Environ()
	cmd.SysProcAttr = detachedProcAttr()
	if err := cmd.Start(); err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: fmt.Sprintf("failed to start %s", path), Cause: err}
	}
	_ = cmd.Process.Release()
	c.log.Info("started ollama serve", zap.String("path", path))

	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		lastErr = c.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if err := c.sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: fmt.Sprintf("Ollama started but not responding after %s", wait),
		Cause:   lastErr,
	}
}
