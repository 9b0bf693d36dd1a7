// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-tui/internal/model"
)

// =============================================================================
// KEY DISPATCH
// =============================================================================

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, a.keys.Quit) {
		return a.quit()
	}
	if a.quitting {
		return nil
	}

	// Function keys and the message bindings work in every mode.
	switch {
	case key.Matches(msg, a.keys.Help):
		return a.enterHelp()
	case key.Matches(msg, a.keys.Models):
		return a.enterModelSelect()
	case key.Matches(msg, a.keys.Download):
		return a.enterDownload()
	case key.Matches(msg, a.keys.Monitor):
		return a.enterMonitor()
	case key.Matches(msg, a.keys.History):
		return a.enterHistory()
	case key.Matches(msg, a.keys.Save):
		return a.saveSession()
	case key.Matches(msg, a.keys.Clear):
		return a.clearSession()
	case key.Matches(msg, a.keys.Config):
		return a.enterConfig()
	case key.Matches(msg, a.keys.SelectLast):
		return a.selectLast()
	case key.Matches(msg, a.keys.Copy):
		return a.copySelection()
	}

	switch a.mode.(type) {
	case ChatMode:
		return a.handleChatKey(msg)
	case ModelSelectMode:
		return a.handleModelSelectKey(msg)
	case ModelDownloadMode:
		return a.handleDownloadKey(msg)
	case SystemMonitorMode:
		return a.handleMonitorKey(msg)
	case ChatHistoryMode:
		return a.handleHistoryKey(msg)
	case ModelConfigMode:
		return a.handleConfigKey(msg)
	case HelpMode:
		if key.Matches(msg, a.keys.Back) {
			a.backToChat()
		}
		return nil
	}
	return nil
}

func (a *App) backToChat() {
	a.mode = ChatMode{}
	if !a.vim.normal() {
		a.input.Focus()
	}
	a.markDirty()
}

// =============================================================================
// CHAT
// =============================================================================

func (a *App) handleChatKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, a.keys.Back) {
		if a.gen.Busy() {
			a.gen.CancelActive()
			return nil
		}
		a.clearStatus()
		if a.vim.enabled && a.vim.mode == VimInsert {
			a.vim.enterNormal()
			a.input.Blur()
			return a.setStatus(statusInfo, "Normal mode")
		}
		return nil
	}

	if a.vim.normal() {
		return a.handleVimKey(msg.String())
	}

	switch {
	case key.Matches(msg, a.keys.Submit):
		return a.submit()
	case key.Matches(msg, a.keys.Prev):
		if text, ok := a.recall.prev(a.input.Value()); ok {
			a.input.SetValue(text)
			a.input.CursorEnd()
			a.markDirty()
		}
		return nil
	case key.Matches(msg, a.keys.Next):
		if text, ok := a.recall.next(); ok {
			a.input.SetValue(text)
			a.input.CursorEnd()
			a.markDirty()
		}
		return nil
	case key.Matches(msg, a.keys.PageUp):
		a.viewport.HalfViewUp()
		a.markDirty()
		return nil
	case key.Matches(msg, a.keys.PageDown):
		a.viewport.HalfViewDown()
		a.markDirty()
		return nil
	case key.Matches(msg, a.keys.Up):
		a.viewport.LineUp(1)
		a.markDirty()
		return nil
	case key.Matches(msg, a.keys.Down):
		a.viewport.LineDown(1)
		a.markDirty()
		return nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.markDirty()
	return cmd
}

func (a *App) handleVimKey(keyStr string) tea.Cmd {
	switch a.vim.handleNormal(keyStr) {
	case vimInsert:
		cmd := a.input.Focus()
		return tea.Batch(cmd, a.setStatus(statusInfo, "Insert mode"))
	case vimScrollUp:
		a.viewport.LineUp(1)
	case vimScrollDown:
		a.viewport.LineDown(1)
	case vimTop:
		a.viewport.GotoTop()
	case vimBottom:
		a.viewport.GotoBottom()
	case vimModels:
		return a.enterModelSelect()
	case vimDownload:
		return a.enterDownload()
	case vimMonitor:
		return a.enterMonitor()
	case vimHistory:
		return a.enterHistory()
	case vimConfig:
		return a.enterConfig()
	case vimSave:
		return a.saveSession()
	case vimQuit:
		return a.quit()
	default:
		return nil
	}
	a.markDirty()
	return nil
}

func (a *App) selectLast() tea.Cmd {
	n := a.session.Len()
	if n == 0 {
		return a.setStatus(statusInfo, "No messages to select")
	}
	a.selected = n - 1
	return a.setStatus(statusInfo, "Message selected. Press Ctrl+Y to copy")
}

func (a *App) copySelection() tea.Cmd {
	if a.selected < 0 || a.selected >= a.session.Len() {
		return a.setStatus(statusWarning, "No message selected. Press Ctrl+S first")
	}
	text := a.session.Messages[a.selected].Text()
	if err := a.deps.Clipboard(text); err != nil {
		return a.setStatus(statusError, "Failed to copy: "+err.Error())
	}
	return a.setStatus(statusSuccess, "Copied to clipboard")
}

func (a *App) saveSession() tea.Cmd {
	if a.session.Len() == 0 {
		return nil
	}
	if err := a.deps.Sessions.Save(a.session); err != nil {
		return a.setStatus(statusError, "Failed to save chat: "+err.Error())
	}
	return a.setStatus(statusSuccess, "Chat saved successfully")
}

func (a *App) clearSession() tea.Cmd {
	if a.gen.Busy() {
		return a.setStatus(statusWarning, "Cannot clear the chat while a response is streaming")
	}
	a.session.Clear()
	a.resetTranscript()
	return a.setStatus(statusSuccess, "Chat cleared")
}

// resetTranscript drops per-message view state after the session changed.
func (a *App) resetTranscript() {
	a.selected = -1
	a.lastStats = nil
	a.markdown.reset()
	a.viewport.GotoTop()
	a.markDirty()
}

// =============================================================================
// MODEL SELECT
// =============================================================================

func (a *App) enterModelSelect() tea.Cmd {
	a.input.Blur()
	a.mode = ModelSelectMode{Cursor: a.modelIndex(a.session.ModelName), Loading: true}
	a.refreshModels(false)
	a.markDirty()
	return nil
}

func (a *App) modelIndex(name string) int {
	for i, m := range a.models {
		if m.Name == name {
			return i
		}
	}
	return 0
}

func (a *App) handleModelSelectKey(msg tea.KeyMsg) tea.Cmd {
	m := a.mode.(ModelSelectMode)
	switch {
	case key.Matches(msg, a.keys.Back):
		a.backToChat()
		return nil
	case key.Matches(msg, a.keys.Up), msg.String() == "k":
		m.Cursor = clampCursor(m.Cursor-1, len(a.models))
	case key.Matches(msg, a.keys.Down, a.keys.NextItem), msg.String() == "j":
		m.Cursor = clampCursor(m.Cursor+1, len(a.models))
	case key.Matches(msg, a.keys.Submit):
		if len(a.models) == 0 {
			return nil
		}
		name := a.models[m.Cursor].Name
		a.session.ModelName = name
		a.backToChat()
		return a.setStatus(statusSuccess, "Model changed to: "+name)
	case key.Matches(msg, a.keys.Delete):
		if len(a.models) == 0 || m.Loading {
			return nil
		}
		name := a.models[m.Cursor].Name
		m.Loading = true
		a.mode = m
		a.deleteModel(name)
		return a.setStatus(statusInfo, "Deleting model: "+name)
	default:
		return nil
	}
	a.mode = m
	a.markDirty()
	return nil
}

// =============================================================================
// MODEL DOWNLOAD
// =============================================================================

func (a *App) enterDownload() tea.Cmd {
	in := textinput.New()
	in.Prompt = "Model: "
	in.Placeholder = "name:tag, e.g. mistral:latest"
	in.CharLimit = 256
	if a.pull != nil {
		in.SetValue(a.pull.name)
	}
	cmd := in.Focus()

	a.input.Blur()
	a.mode = ModelDownloadMode{Input: in}
	a.markDirty()
	return cmd
}

func (a *App) handleDownloadKey(msg tea.KeyMsg) tea.Cmd {
	m := a.mode.(ModelDownloadMode)
	switch {
	case key.Matches(msg, a.keys.Back):
		if a.pull != nil {
			a.pull.cancel()
			return a.setStatus(statusInfo, "Cancelling download...")
		}
		a.backToChat()
		return nil
	case key.Matches(msg, a.keys.Submit):
		name := strings.TrimSpace(m.Input.Value())
		if name == "" {
			return nil
		}
		if a.pull != nil {
			return a.setStatus(statusWarning, "A download is already running: "+a.pull.name)
		}
		a.startPull(name)
		return a.setStatus(statusInfo, "Downloading model: "+name)
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	a.mode = m
	a.markDirty()
	return cmd
}

// =============================================================================
// SYSTEM MONITOR
// =============================================================================

func (a *App) enterMonitor() tea.Cmd {
	a.input.Blur()
	a.mode = SystemMonitorMode{}
	a.markDirty()
	return nil
}

func (a *App) handleMonitorKey(msg tea.KeyMsg) tea.Cmd {
	m := a.mode.(SystemMonitorMode)
	n := len(a.snapshot.Processes)
	switch {
	case key.Matches(msg, a.keys.Back):
		a.backToChat()
		return nil
	case key.Matches(msg, a.keys.Up), msg.String() == "k":
		m.Scroll = clampCursor(m.Scroll-1, n)
	case key.Matches(msg, a.keys.Down), msg.String() == "j":
		m.Scroll = clampCursor(m.Scroll+1, n)
	case key.Matches(msg, a.keys.PageUp):
		m.Scroll = clampCursor(m.Scroll-a.pageSize(), n)
	case key.Matches(msg, a.keys.PageDown):
		m.Scroll = clampCursor(m.Scroll+a.pageSize(), n)
	default:
		return nil
	}
	a.mode = m
	a.markDirty()
	return nil
}

// =============================================================================
// CHAT HISTORY
// =============================================================================

func (a *App) enterHistory() tea.Cmd {
	sums, err := a.deps.Sessions.List()
	if err != nil {
		return a.setStatus(statusError, "Failed to list chats: "+err.Error())
	}
	a.input.Blur()
	a.mode = ChatHistoryMode{Sessions: sums}
	a.markDirty()
	if len(sums) == 0 {
		return a.setStatus(statusInfo, "No saved chats")
	}
	return nil
}

// reloadHistory refreshes the list, keeping the cursor on the same session
// when it still exists.
func (a *App) reloadHistory() {
	m, ok := a.mode.(ChatHistoryMode)
	if !ok {
		return
	}
	sums, err := a.deps.Sessions.List()
	if err != nil {
		a.log.Warn("history refresh failed")
		return
	}

	cursor := m.Cursor
	if cursor < len(m.Sessions) {
		id := m.Sessions[cursor].ID
		for i, s := range sums {
			if s.ID == id {
				cursor = i
				break
			}
		}
	}
	a.mode = ChatHistoryMode{Sessions: sums, Cursor: clampCursor(cursor, len(sums))}
	a.markDirty()
}

func (a *App) handleHistoryKey(msg tea.KeyMsg) tea.Cmd {
	m := a.mode.(ChatHistoryMode)
	switch {
	case key.Matches(msg, a.keys.Back):
		a.backToChat()
		return nil
	case key.Matches(msg, a.keys.Up), msg.String() == "k":
		m.Cursor = clampCursor(m.Cursor-1, len(m.Sessions))
	case key.Matches(msg, a.keys.Down, a.keys.NextItem), msg.String() == "j":
		m.Cursor = clampCursor(m.Cursor+1, len(m.Sessions))
	case key.Matches(msg, a.keys.Submit):
		if len(m.Sessions) == 0 {
			return nil
		}
		return a.loadSession(m.Sessions[m.Cursor].ID)
	case key.Matches(msg, a.keys.Delete):
		if len(m.Sessions) == 0 {
			return nil
		}
		if err := a.deps.Sessions.Delete(m.Sessions[m.Cursor].ID); err != nil {
			return a.setStatus(statusError, "Failed to delete chat: "+err.Error())
		}
		a.reloadHistory()
		return a.setStatus(statusSuccess, "Chat deleted")
	default:
		return nil
	}
	a.mode = m
	a.markDirty()
	return nil
}

func (a *App) loadSession(id string) tea.Cmd {
	if a.gen.Busy() {
		return a.setStatus(statusWarning, "Cannot load a chat while a response is streaming")
	}
	sess, err := a.deps.Sessions.Load(id)
	if err != nil {
		return a.setStatus(statusError, "Failed to load chat: "+err.Error())
	}
	a.session = sess
	a.resetTranscript()
	a.backToChat()
	a.viewport.GotoBottom()
	return a.setStatus(statusSuccess, "Loaded chat from "+sess.CreatedAt.Format("2006-01-02 15:04:05"))
}

// =============================================================================
// MODEL CONFIG
// =============================================================================

func (a *App) enterConfig() tea.Cmd {
	a.input.Blur()
	m := ModelConfigMode{Field: model.FieldTemperature}
	cmd := a.editField(&m)
	a.mode = m
	a.markDirty()
	return cmd
}

// editField points the edit buffer at m.Field, initialised with its value.
func (a *App) editField(m *ModelConfigMode) tea.Cmd {
	in := textinput.New()
	in.Prompt = ""
	in.SetValue(a.modelCfg.Value(m.Field))
	in.CursorEnd()
	m.Input = in
	return m.Input.Focus()
}

func (a *App) handleConfigKey(msg tea.KeyMsg) tea.Cmd {
	m := a.mode.(ModelConfigMode)
	switch {
	case key.Matches(msg, a.keys.Back):
		a.backToChat()
		return nil
	case key.Matches(msg, a.keys.Up):
		m.Field = m.Field.Prev()
		cmd := a.editField(&m)
		a.mode = m
		a.markDirty()
		return cmd
	case key.Matches(msg, a.keys.Down, a.keys.NextItem):
		m.Field = m.Field.Next()
		cmd := a.editField(&m)
		a.mode = m
		a.markDirty()
		return cmd
	case key.Matches(msg, a.keys.Submit):
		return a.commitField(m)
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	a.mode = m
	a.markDirty()
	return cmd
}

// commitField validates, clamps and persists one edit. On any error the
// in-memory parameters stay unchanged and the mode stays open.
func (a *App) commitField(m ModelConfigMode) tea.Cmd {
	cfg := a.modelCfg
	corrections, err := cfg.Set(m.Field, m.Input.Value())
	if err != nil {
		return a.setStatus(statusError, err.Error())
	}
	if err := a.deps.Configs.Save(cfg); err != nil {
		return a.setStatus(statusError, "Failed to save configuration: "+err.Error())
	}

	a.modelCfg = cfg
	a.backToChat()
	if len(corrections) > 0 {
		parts := make([]string, len(corrections))
		for i, c := range corrections {
			parts[i] = c.String()
		}
		return a.setStatus(statusWarning, strings.Join(parts, "; "))
	}
	return a.setStatus(statusSuccess, fmt.Sprintf("Configuration saved (%s = %s)", m.Field, cfg.Value(m.Field)))
}

// =============================================================================
// HELP
// =============================================================================

func (a *App) enterHelp() tea.Cmd {
	a.input.Blur()
	a.mode = HelpMode{}
	a.markDirty()
	return nil
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 3
)

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	a.theme.SetSize(width, height)

	a.viewport.Width = width
	a.viewport.Height = max(1, height-headerHeight-statusHeight-inputHeight)
	a.input.Width = max(10, width-6)
	a.help.Width = width
	a.progress.Width = min(60, max(10, width-20))
	a.markdown.setWidth(max(20, width-4))
	a.markDirty()
}

// pageSize is the number of list rows that fit the body.
func (a *App) pageSize() int {
	return max(1, a.height-headerHeight-statusHeight-8)
}
