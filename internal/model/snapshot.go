// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// SystemSnapshot is one reading of host resources. A new snapshot replaces
// the previous one wholesale.
type SystemSnapshot struct {
	Taken      time.Time
	CPUPercent float64
	MemUsed    uint64
	MemTotal   uint64
	// GPU is nil when no GPU could be queried.
	GPU *GPUStats
	// Processes is ordered by CPU usage, highest first.
	Processes []ProcessInfo
}

// MemPercent returns used memory as a percentage of total.
func (s SystemSnapshot) MemPercent() float64 {
	if s.MemTotal == 0 {
		return 0
	}
	return float64(s.MemUsed) / float64(s.MemTotal) * 100
}

// GPUStats is the first GPU reported by nvidia-smi.
type GPUStats struct {
	UtilizationPercent float64
	MemUsedMB          uint64
	MemTotalMB         uint64
	TemperatureC       float64
}

// ProcessInfo is one row of the process table.
type ProcessInfo struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemPercent float32
}
