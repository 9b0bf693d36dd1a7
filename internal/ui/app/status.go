// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

// statusLine is the transient message under the main view. seq identifies
// it so an expiry tick only clears the line it was scheduled for.
type statusLine struct {
	kind statusKind
	text string
	seq  int
}

// setStatus replaces the status line and returns the tick that clears it.
func (a *App) setStatus(kind statusKind, text string) tea.Cmd {
	seq := a.status.seq + 1
	a.status = statusLine{kind: kind, text: text, seq: seq}
	a.markDirty()

	if kind == statusError {
		a.log.Warn("status error", zap.String("status", text))
	}
	return tea.Tick(a.opts.StatusTTL, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// clearStatus drops the current status line (user acknowledgment).
func (a *App) clearStatus() {
	if a.status.text == "" {
		return
	}
	a.status = statusLine{seq: a.status.seq + 1}
	a.markDirty()
}
