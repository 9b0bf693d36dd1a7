// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ollama-tui/internal/generation"
)

// =============================================================================
// SUBMIT
// =============================================================================

// submit sends the prompt in the input. While a generation is live it does
// nothing: prompts are never queued.
func (a *App) submit() tea.Cmd {
	if a.gen.Busy() {
		return nil
	}
	text := norm.NFC.String(strings.TrimSpace(a.input.Value()))
	if text == "" {
		return nil
	}

	history := a.session.Clone()
	a.session.AddUser(text)
	reply := a.session.BeginAssistant()

	if _, err := a.gen.Start(text, history, a.modelCfg); err != nil {
		a.session.DropEmptyAssistant()
		a.markDirty()
		return a.setStatus(statusError, "Failed to start generation: "+err.Error())
	}

	a.reply = reply
	a.generating = time.Now()
	a.input.Reset()
	a.recall.add(text)
	a.recordPrompt(text)
	a.clearStatus()
	a.viewport.GotoBottom()
	a.markDirty()
	return a.spinner.Tick
}

// =============================================================================
// GENERATION EVENTS
// =============================================================================

func (a *App) handleGeneration(ev generation.Event) tea.Cmd {
	ev, ok := a.gen.Accept(ev)
	if !ok {
		return nil
	}

	switch ev := ev.(type) {
	case generation.TokenReceived:
		if a.reply != nil {
			a.reply.AppendToken(ev.Text)
		}
		a.requestRender()
		return a.scheduleFrame()

	case generation.GenerationComplete:
		stats := ev.Stats
		if a.reply != nil {
			a.reply.Finalize(&stats)
		}
		a.reply = nil
		a.lastStats = &stats
		a.markDirty()
		if a.quitting {
			return a.exit()
		}
		return nil

	case generation.GenerationFailed:
		a.finishReply()
		a.markDirty()
		if a.quitting {
			return a.exit()
		}
		if ev.Reason == generation.Cancelled {
			return a.setStatus(statusInfo, "Generation cancelled")
		}
		a.log.Warn("generation failed", zap.Stringer("reason", ev.Reason), zap.Error(ev.Err))
		return a.setStatus(statusError, failureText(ev))
	}
	return nil
}

// finishReply freezes the in-flight reply after a failure. A reply that
// received nothing is removed; partial text is kept.
func (a *App) finishReply() {
	if a.reply == nil {
		return
	}
	if a.reply.IsEmpty() {
		a.session.DropEmptyAssistant()
	} else {
		a.reply.Finalize(nil)
	}
	a.reply = nil
}

func failureText(ev generation.GenerationFailed) string {
	switch ev.Reason {
	case generation.ConnectionError:
		return "Connection to Ollama failed: " + errText(ev.Err)
	case generation.ProtocolError:
		return "Ollama returned an error: " + errText(ev.Err)
	default:
		return ev.Error()
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
