// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/ollama"
)

// =============================================================================
// EXTERNAL MESSAGES
// =============================================================================

// SnapshotMsg carries a resource sample. Publish it on the Bus.
type SnapshotMsg struct {
	Snapshot model.SystemSnapshot
}

// HistoryChangedMsg reports that saved sessions changed on disk.
type HistoryChangedMsg struct{}

// =============================================================================
// BACKEND RESULTS
// =============================================================================

type modelsLoadedMsg struct {
	models []ollama.ModelInfo
	err    error
	// quiet results (startup, post-download refresh) do not touch the status.
	quiet bool
}

type modelDeletedMsg struct {
	name string
	err  error
}

type pullProgressMsg struct {
	name     string
	progress ollama.PullProgress
}

type pullDoneMsg struct {
	name string
	err  error
}

type promptHistoryMsg struct {
	entries []string
	err     error
}

// =============================================================================
// TIMERS
// =============================================================================

// frameMsg flushes a coalesced render.
type frameMsg struct{}

// quitTimeoutMsg ends the wait for a cancelled generation on quit.
type quitTimeoutMsg struct{}

// statusExpiredMsg clears the status line if it is still the one set at seq.
type statusExpiredMsg struct {
	seq int
}
