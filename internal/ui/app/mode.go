// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/jeranaias/ollama-tui/internal/model"
)

// ModeKind names a Mode.
type ModeKind int

const (
	KindChat ModeKind = iota
	KindModelSelect
	KindModelDownload
	KindSystemMonitor
	KindChatHistory
	KindModelConfig
	KindHelp
)

func (k ModeKind) String() string {
	switch k {
	case KindChat:
		return "Chat"
	case KindModelSelect:
		return "Models"
	case KindModelDownload:
		return "Download"
	case KindSystemMonitor:
		return "Monitor"
	case KindChatHistory:
		return "History"
	case KindModelConfig:
		return "Config"
	case KindHelp:
		return "Help"
	default:
		return "Unknown"
	}
}

// Mode is the closed set of UI modes. Each variant carries only the state
// that mode needs; switching modes replaces the value.
type Mode interface {
	Kind() ModeKind
	mode()
}

// ChatMode is the hub state.
type ChatMode struct{}

// ModelSelectMode lists installed models. The list itself is App.models.
type ModelSelectMode struct {
	Cursor  int
	Loading bool
}

// ModelDownloadMode edits the name of a model to pull. Progress of a running
// pull lives on the App so it survives leaving the mode.
type ModelDownloadMode struct {
	Input textinput.Model
}

// SystemMonitorMode shows the latest snapshot.
type SystemMonitorMode struct {
	Scroll int
}

// ChatHistoryMode lists saved sessions, newest first.
type ChatHistoryMode struct {
	Sessions []model.SessionSummary
	Cursor   int
}

// ModelConfigMode edits one parameter at a time.
type ModelConfigMode struct {
	Field model.ConfigField
	Input textinput.Model
}

// HelpMode shows the key reference.
type HelpMode struct{}

func (ChatMode) Kind() ModeKind          { return KindChat }
func (ModelSelectMode) Kind() ModeKind   { return KindModelSelect }
func (ModelDownloadMode) Kind() ModeKind { return KindModelDownload }
func (SystemMonitorMode) Kind() ModeKind { return KindSystemMonitor }
func (ChatHistoryMode) Kind() ModeKind   { return KindChatHistory }
func (ModelConfigMode) Kind() ModeKind   { return KindModelConfig }
func (HelpMode) Kind() ModeKind          { return KindHelp }

func (ChatMode) mode()          {}
func (ModelSelectMode) mode()   {}
func (ModelDownloadMode) mode() {}
func (SystemMonitorMode) mode() {}
func (ChatHistoryMode) mode()   {}
func (ModelConfigMode) mode()   {}
func (HelpMode) mode()          {}

// clampCursor keeps a list cursor inside [0, n).
func clampCursor(cursor, n int) int {
	if n <= 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}
