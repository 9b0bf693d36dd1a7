// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor samples host resources for the System Monitor view.
//
// # Key Types
//
//   - Sampler: runs a Collector on a fixed period and emits snapshots
//   - Collector: produces one model.SystemSnapshot
//   - HostCollector: CPU and memory via gopsutil, processes and GPU through
//     background-refreshed caches
//
// # Drop, Don't Queue
//
// A tick that arrives while the previous sample is still running is
// skipped, and a sample that finishes later than one period after it
// started is discarded. After N ticks at most N snapshots are emitted.
// Sampling failures never stop the sampler: missing data is left empty.
package monitor
