// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across ollama-tui.
//
// # Key Functions
//
//   - WriteFileAtomic: crash-safe write (temp file, fsync, rename)
//   - Truncate: display-width aware truncation with an ellipsis
//   - PadRight: display-width aware padding for table columns
//   - FormatBytes: human readable byte counts
//
// # Usage
//
//	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
//	    return err
//	}
//	name := util.Truncate(proc.Name, 24)
package util
