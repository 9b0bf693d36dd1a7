// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/jeranaias/ollama-tui/internal/model"
)

var errNoGPU = errors.New("no NVIDIA GPU found")

// commandRunner executes a program and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// nvidiaSmiPaths returns possible locations of nvidia-smi.
func nvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// queryNvidia reads the first GPU's utilisation, memory and temperature.
func queryNvidia(ctx context.Context, run commandRunner) (*model.GPUStats, error) {
	var lastErr error = errNoGPU
	for _, path := range nvidiaSmiPaths() {
		out, err := run(ctx, path,
			"--query-gpu=utilization.gpu,memory.used,memory.total,temperature.gpu",
			"--format=csv,noheader,nounits")
		if err != nil {
			lastErr = err
			continue
		}
		return parseNvidiaSmi(string(out))
	}
	return nil, lastErr
}

// parseNvidiaSmi parses "45, 2048, 8192, 62". Only the first line (first
// GPU) is used. Fields nvidia-smi reports as "[N/A]" are left at zero.
func parseNvidiaSmi(out string) (*model.GPUStats, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" {
		return nil, errNoGPU
	}
	parts := strings.Split(line, ",")
	if len(parts) < 4 {
		return nil, fmt.Errorf("unexpected nvidia-smi output %q", line)
	}

	num := func(s string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		return v
	}
	return &model.GPUStats{
		UtilizationPercent: num(parts[0]),
		MemUsedMB:          uint64(num(parts[1])),
		MemTotalMB:         uint64(num(parts[2])),
		TemperatureC:       num(parts[3]),
	}, nil
}
