// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/model"
)

// HostOptions configures a HostCollector.
type HostOptions struct {
	// MaxProcesses caps the process table (default 50).
	MaxProcesses int
	// ProcessRefresh and GPURefresh bound how often the slow reads run.
	ProcessRefresh time.Duration
	GPURefresh     time.Duration
}

// HostCollector reads the local machine. CPU and memory are read on every
// call. The process table and GPU stats are slow to read, so they are
// refreshed in the background and the latest result is reused.
type HostCollector struct {
	maxProcs int
	procs    *refreshCache[[]model.ProcessInfo]
	gpu      *refreshCache[*model.GPUStats]
	log      *zap.Logger

	mu sync.Mutex
	// known keeps *process.Process values alive between refreshes so
	// Percent(0) can report usage since the previous refresh.
	known map[int32]*process.Process
}

// NewHostCollector creates a collector for the local machine.
func NewHostCollector(opts HostOptions) *HostCollector {
	if opts.MaxProcesses <= 0 {
		opts.MaxProcesses = 50
	}
	if opts.ProcessRefresh <= 0 {
		opts.ProcessRefresh = time.Second
	}
	if opts.GPURefresh <= 0 {
		opts.GPURefresh = time.Second
	}

	h := &HostCollector{
		maxProcs: opts.MaxProcesses,
		known:    make(map[int32]*process.Process),
		log:      logging.Named("monitor"),
	}
	h.procs = newRefreshCache(opts.ProcessRefresh, 5*time.Second, h.readProcesses)
	h.gpu = newRefreshCache(opts.GPURefresh, 5*time.Second, func(ctx context.Context) (*model.GPUStats, error) {
		return queryNvidia(ctx, execRunner)
	})
	return h
}

// Collect implements Collector.
func (h *HostCollector) Collect(ctx context.Context) model.SystemSnapshot {
	snap := model.SystemSnapshot{Taken: time.Now()}

	// interval 0 compares against the previous call.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemUsed = vm.Used
		snap.MemTotal = vm.Total
	}
	if procs, ok := h.procs.Get(); ok {
		snap.Processes = procs
	}
	if gpu, ok := h.gpu.Get(); ok && gpu != nil {
		g := *gpu
		snap.GPU = &g
	}
	return snap
}

func (h *HostCollector) readProcesses(ctx context.Context) ([]model.ProcessInfo, error) {
	list, err := process.ProcessesWithContext(ctx)
	if err != nil {
		h.log.Debug("process list unavailable", zap.Error(err))
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[int32]*process.Process, len(list))
	out := make([]model.ProcessInfo, 0, len(list))
	for _, p := range list {
		if prev, ok := h.known[p.Pid]; ok {
			p = prev
		}
		seen[p.Pid] = p

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.PercentWithContext(ctx, 0)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		out = append(out, model.ProcessInfo{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpuPct,
			MemPercent: memPct,
		})
	}
	h.known = seen

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CPUPercent == out[j].CPUPercent {
			return out[i].PID < out[j].PID
		}
		return out[i].CPUPercent > out[j].CPUPercent
	})
	if len(out) > h.maxProcs {
		out = out[:h.maxProcs]
	}
	return out, nil
}
