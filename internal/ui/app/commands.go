// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/ollama"
)

// =============================================================================
// BACKEND CALLS
// =============================================================================

// refreshModels fetches the model list in the background. quiet results
// report failures only to the log.
func (a *App) refreshModels(quiet bool) {
	a.spawn(func(ctx context.Context) tea.Msg {
		models, err := a.deps.Models.ListModels(ctx)
		return modelsLoadedMsg{models: models, err: err, quiet: quiet}
	})
}

func (a *App) deleteModel(name string) {
	a.spawn(func(ctx context.Context) tea.Msg {
		return modelDeletedMsg{name: name, err: a.deps.Models.DeleteModel(ctx, name)}
	})
}

// startPull downloads name. Progress and the final result arrive on the bus
// in order.
func (a *App) startPull(name string) {
	ctx, cancel := context.WithCancel(a.ctx)
	a.pull = &pullState{name: name, status: "starting", cancel: cancel}
	a.log.Info("model pull started", zap.String("model", name))

	a.spawn(func(context.Context) tea.Msg {
		defer cancel()
		err := a.deps.Models.PullModel(ctx, name, func(p ollama.PullProgress) {
			a.bus.Publish(pullProgressMsg{name: name, progress: p})
		})
		return pullDoneMsg{name: name, err: err}
	})
}

// =============================================================================
// PROMPT HISTORY
// =============================================================================

func (a *App) loadRecall() {
	if a.deps.History == nil {
		return
	}
	a.spawn(func(ctx context.Context) tea.Msg {
		entries, err := a.deps.History.Recent(ctx, recallLimit)
		return promptHistoryMsg{entries: entries, err: err}
	})
}

func (a *App) recordPrompt(text string) {
	if a.deps.History == nil {
		return
	}
	modelName := a.session.ModelName
	a.spawn(func(ctx context.Context) tea.Msg {
		if err := a.deps.History.Add(ctx, text, modelName); err != nil {
			a.log.Warn("failed to record prompt", zap.Error(err))
		}
		return nil
	})
}

// =============================================================================
// RESULTS
// =============================================================================

func (a *App) handleModelsLoaded(msg modelsLoadedMsg) tea.Cmd {
	m, selecting := a.mode.(ModelSelectMode)
	if msg.err != nil {
		if selecting {
			a.backToChat()
			return a.setStatus(statusError, "Failed to list models: "+msg.err.Error())
		}
		if msg.quiet {
			a.log.Warn("model list refresh failed", zap.Error(msg.err))
			return nil
		}
		return a.setStatus(statusError, "Failed to list models: "+msg.err.Error())
	}

	a.models = msg.models
	a.markDirty()
	if !selecting {
		return nil
	}

	if m.Loading {
		m.Cursor = a.modelIndex(a.session.ModelName)
	}
	m.Loading = false
	m.Cursor = clampCursor(m.Cursor, len(a.models))
	a.mode = m
	if len(a.models) == 0 {
		return a.setStatus(statusInfo, "No models installed. Press F3 to download one")
	}
	return nil
}

func (a *App) handleModelDeleted(msg modelDeletedMsg) tea.Cmd {
	if msg.err != nil {
		if m, ok := a.mode.(ModelSelectMode); ok {
			m.Loading = false
			a.mode = m
		}
		return a.setStatus(statusError, fmt.Sprintf("Failed to delete model %s: %v", msg.name, msg.err))
	}
	a.refreshModels(true)
	return a.setStatus(statusSuccess, "Model "+msg.name+" deleted")
}

// handlePullProgress records progress. ollama reports per-layer
// percentages, so the shown value only ever grows.
func (a *App) handlePullProgress(msg pullProgressMsg) tea.Cmd {
	if a.pull == nil || msg.name != a.pull.name {
		return nil
	}
	p := msg.progress
	if p.Status != "" {
		a.pull.status = p.Status
	}
	if pct := p.Percent(); pct > a.pull.percent {
		a.pull.percent = pct
	}
	a.requestRender()
	return a.scheduleFrame()
}

func (a *App) handlePullDone(msg pullDoneMsg) tea.Cmd {
	if a.pull == nil || msg.name != a.pull.name {
		return nil
	}
	a.pull = nil
	if a.mode.Kind() == KindModelDownload {
		a.backToChat()
	}
	a.markDirty()

	switch {
	case msg.err == nil:
		a.log.Info("model pull finished", zap.String("model", msg.name))
		a.refreshModels(true)
		return a.setStatus(statusSuccess, "Model "+msg.name+" downloaded successfully")
	case errors.Is(msg.err, context.Canceled):
		return a.setStatus(statusInfo, "Download cancelled")
	default:
		a.log.Warn("model pull failed", zap.String("model", msg.name), zap.Error(msg.err))
		return a.setStatus(statusError, "Failed to download model: "+msg.err.Error())
	}
}
