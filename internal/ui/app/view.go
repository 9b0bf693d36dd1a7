// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/ui/styles"
	"github.com/jeranaias/ollama-tui/internal/util"
)

// View returns the current frame, rebuilding it only when state changed.
func (a *App) View() string {
	if !a.dirty {
		return a.view
	}
	a.dirty = false
	a.renders++
	a.view = a.render()
	return a.view
}

func (a *App) render() string {
	var body string
	switch m := a.mode.(type) {
	case ChatMode:
		body = a.renderChat()
	case ModelSelectMode:
		body = a.renderModelSelect(m)
	case ModelDownloadMode:
		body = a.renderDownload(m)
	case SystemMonitorMode:
		body = a.renderMonitor(m)
	case ChatHistoryMode:
		body = a.renderHistory(m)
	case ModelConfigMode:
		body = a.renderConfig(m)
	case HelpMode:
		body = a.renderHelp()
	}
	return lipgloss.JoinVertical(lipgloss.Left, a.renderHeader(), body, a.renderStatusBar())
}

// =============================================================================
// HEADER AND STATUS BAR
// =============================================================================

func (a *App) renderHeader() string {
	parts := []string{
		a.theme.HeaderTitle.Render("ollama-tui"),
		a.theme.HeaderSubtitle.Render(a.session.ModelName),
		a.theme.ModeBadge.Render(a.mode.Kind().String()),
	}
	if ind := a.vim.indicator(); ind != "" && a.mode.Kind() == KindChat {
		parts = append(parts, a.theme.Muted.Render(ind))
	}
	if a.gen.Busy() {
		elapsed := time.Since(a.generating).Truncate(100 * time.Millisecond)
		parts = append(parts, a.theme.Streaming.Render("streaming "+elapsed.String()))
	}
	if a.pull != nil {
		parts = append(parts, a.theme.Streaming.Render(fmt.Sprintf("pull %.0f%%", a.pull.percent)))
	}
	return a.theme.Header.Width(a.width).Render(strings.Join(parts, "  "))
}

func (a *App) renderStatusBar() string {
	var left string
	switch a.status.kind {
	case statusError:
		left = a.theme.RenderError(a.status.text)
	case statusWarning:
		left = a.theme.RenderWarning(a.status.text)
	case statusSuccess:
		left = a.theme.RenderSuccess(a.status.text)
	default:
		left = a.theme.RenderInfo(a.status.text)
	}
	if a.status.text == "" {
		left = a.help.ShortHelpView(a.keys.ShortHelp())
	}

	right := a.theme.StatusText.Render(a.sessionStats())
	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	return a.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

// sessionStats renders "4 msgs | 312 tokens | 41.8 tok/s".
func (a *App) sessionStats() string {
	s := fmt.Sprintf("%d msgs | %d tokens", a.session.Len(), a.session.TotalTokens())
	if a.lastStats != nil && a.lastStats.TokensPerSecond > 0 {
		s += fmt.Sprintf(" | %.1f tok/s", a.lastStats.TokensPerSecond)
	}
	return s
}

// =============================================================================
// CHAT
// =============================================================================

func (a *App) renderChat() string {
	wasAtBottom := a.viewport.AtBottom()
	a.viewport.SetContent(a.renderTranscript())
	if wasAtBottom {
		a.viewport.GotoBottom()
	}

	box := a.theme.Input
	if !a.vim.normal() {
		box = a.theme.InputFocused
	}
	input := box.Width(max(10, a.width-2)).Render(a.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, a.viewport.View(), input)
}

func (a *App) renderTranscript() string {
	if a.session.Len() == 0 {
		return a.theme.Muted.Render(fmt.Sprintf(
			"\n  Chatting with %s. Type a message and press Enter. F1 shows all keys.", a.session.ModelName))
	}

	width := max(20, a.width-4)
	var b strings.Builder
	for i, m := range a.session.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.renderMessageHeader(i, m))
		b.WriteString("\n")
		b.WriteString(a.renderMessageBody(m, width))
		b.WriteString("\n")
		if stats := m.FormatStats(); stats != "" {
			b.WriteString(a.theme.MessageStats.Render(stats))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *App) renderMessageHeader(i int, m *model.Message) string {
	var label string
	switch m.Role {
	case model.RoleUser:
		label = a.theme.UserLabel.Render(m.Role.DisplayName())
	case model.RoleAssistant:
		label = a.theme.AssistantLabel.Render(m.Role.DisplayName())
	default:
		label = a.theme.SystemLabel.Render(m.Role.DisplayName())
	}
	line := label + " " + a.theme.Muted.Render(m.Timestamp.Format("15:04:05"))
	if i == a.selected {
		line += " " + a.theme.StatusInfo.Render("[selected]")
	}
	return line
}

func (a *App) renderMessageBody(m *model.Message, width int) string {
	if out, ok := a.markdown.render(m); ok {
		return out
	}
	text := m.Text()
	if m.Streaming {
		if text == "" {
			return a.theme.MessageBody.Render(a.spinner.View() + " thinking...")
		}
		text += "_"
	}
	return a.theme.MessageBody.Width(width).Render(text)
}

// =============================================================================
// MODEL SELECT
// =============================================================================

func (a *App) renderModelSelect(m ModelSelectMode) string {
	var b strings.Builder
	b.WriteString(a.theme.PanelTitle.Render("Select Model"))
	b.WriteString("\n")

	if len(a.models) == 0 {
		if m.Loading {
			b.WriteString(a.theme.Muted.Render("Loading models..."))
		} else {
			b.WriteString(a.theme.Muted.Render("No models installed. Press F3 to download one."))
		}
		return a.panel(b.String())
	}

	nameWidth := min(48, max(16, a.width-40))
	start, end := window(m.Cursor, len(a.models), a.pageSize())
	for i := start; i < end; i++ {
		info := a.models[i]
		row := util.PadRight(info.Name, nameWidth) + "  " +
			a.theme.ListMeta.Render(fmt.Sprintf("%9s  %s", info.FormatSize(), info.ModifiedAt.Format("2006-01-02")))
		if info.Name == a.session.ModelName {
			row += " " + a.theme.StatusSuccess.Render("(current)")
		}
		b.WriteString(a.listRow(row, i == m.Cursor))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.hints("Enter", "select", "d", "delete", "Esc", "back"))
	return a.panel(b.String())
}

// =============================================================================
// MODEL DOWNLOAD
// =============================================================================

func (a *App) renderDownload(m ModelDownloadMode) string {
	var b strings.Builder
	b.WriteString(a.theme.PanelTitle.Render("Download Model"))
	b.WriteString("\n")
	b.WriteString(a.theme.InputFocused.Render(m.Input.View()))
	b.WriteString("\n\n")

	if a.pull != nil {
		b.WriteString(fmt.Sprintf("Pulling %s: %s\n", a.pull.name, a.pull.status))
		b.WriteString(a.progress.ViewAs(a.pull.percent / 100))
		b.WriteString("\n\n")
		b.WriteString(a.hints("Esc", "cancel download"))
	} else {
		b.WriteString(a.hints("Enter", "download", "Esc", "back"))
	}
	return a.panel(b.String())
}

// =============================================================================
// SYSTEM MONITOR
// =============================================================================

func (a *App) renderMonitor(m SystemMonitorMode) string {
	snap := a.snapshot
	gaugeWidth := min(40, max(10, a.width-40))

	var b strings.Builder
	b.WriteString(a.theme.PanelTitle.Render("System Monitor"))
	b.WriteString("\n")
	if snap.Taken.IsZero() {
		b.WriteString(a.theme.Muted.Render("Waiting for the first sample..."))
		return a.panel(b.String())
	}

	b.WriteString(fmt.Sprintf("CPU     %s %5.1f%%\n",
		styles.RenderColoredGauge(gaugeWidth, snap.CPUPercent), snap.CPUPercent))
	b.WriteString(fmt.Sprintf("Memory  %s %5.1f%%  %s / %s\n",
		styles.RenderColoredGauge(gaugeWidth, snap.MemPercent()), snap.MemPercent(),
		util.FormatBytes(snap.MemUsed), util.FormatBytes(snap.MemTotal)))

	if gpu := snap.GPU; gpu != nil {
		b.WriteString(fmt.Sprintf("GPU     %s %5.1f%%  %d / %d MB  %.0fC\n",
			styles.RenderColoredGauge(gaugeWidth, gpu.UtilizationPercent), gpu.UtilizationPercent,
			gpu.MemUsedMB, gpu.MemTotalMB, gpu.TemperatureC))
	} else {
		b.WriteString(a.theme.Muted.Render("GPU     not available"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.theme.FieldLabel.UnsetWidth().Render(fmt.Sprintf("%8s  %-28s %7s %7s", "PID", "NAME", "CPU%", "MEM%")))
	b.WriteString("\n")

	procs := snap.Processes
	end := min(len(procs), m.Scroll+a.pageSize()-4)
	for i := m.Scroll; i < end; i++ {
		p := procs[i]
		b.WriteString(fmt.Sprintf("%8d  %s %7.1f %7.1f\n",
			p.PID, util.PadRight(p.Name, 28), p.CPUPercent, p.MemPercent))
	}
	b.WriteString("\n")
	b.WriteString(a.hints("Up/Down", "scroll", "Esc", "back"))
	return a.panel(b.String())
}

// =============================================================================
// CHAT HISTORY
// =============================================================================

func (a *App) renderHistory(m ChatHistoryMode) string {
	var b strings.Builder
	b.WriteString(a.theme.PanelTitle.Render("Chat History"))
	b.WriteString("\n")

	if len(m.Sessions) == 0 {
		b.WriteString(a.theme.Muted.Render("No saved chats. Press F6 in Chat to save one."))
		return a.panel(b.String())
	}

	previewWidth := max(10, a.width-60)
	start, end := window(m.Cursor, len(m.Sessions), a.pageSize())
	for i := start; i < end; i++ {
		s := m.Sessions[i]
		row := s.CreatedAt.Format("2006-01-02 15:04:05") + "  " +
			util.PadRight(s.ModelName, 20) + "  " +
			a.theme.ListMeta.Render(fmt.Sprintf("%3d msgs  %s", s.MessageCount,
				util.Truncate(util.FirstLine(s.Preview), previewWidth)))
		b.WriteString(a.listRow(row, i == m.Cursor))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.hints("Enter", "load", "d", "delete", "Esc", "back"))
	return a.panel(b.String())
}

// =============================================================================
// MODEL CONFIG
// =============================================================================

func (a *App) renderConfig(m ModelConfigMode) string {
	var b strings.Builder
	b.WriteString(a.theme.PanelTitle.Render("Model Configuration"))
	b.WriteString("\n")

	for _, f := range model.ConfigFields {
		label := a.theme.FieldLabel.Render(f.String())
		var value string
		if f == m.Field {
			value = a.theme.FieldEditing.Render(m.Input.View())
		} else {
			value = a.theme.FieldValue.Render(util.Truncate(a.modelCfg.Value(f), max(10, a.width-40)))
		}
		row := label + value
		if r := f.Range(); r != "" {
			row += "  " + a.theme.Muted.Render("("+r+")")
		}
		b.WriteString(a.listRow(row, f == m.Field))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.hints("Up/Down/Tab", "field", "Enter", "save", "Esc", "back"))
	return a.panel(b.String())
}

// =============================================================================
// HELP
// =============================================================================

func (a *App) renderHelp() string {
	var b strings.Builder
	b.WriteString(a.theme.PanelTitle.Render("Keys"))
	b.WriteString("\n")
	b.WriteString(a.help.View(a.keys))
	b.WriteString("\n\n")
	if a.vim.enabled {
		b.WriteString(a.theme.PanelTitle.Render("Vim (chat, normal mode)"))
		b.WriteString("\n")
		b.WriteString(a.hints("Esc", "normal", "i", "insert", "j/k", "scroll", "gg/G", "top/bottom"))
		b.WriteString("\n")
		b.WriteString(a.hints("gm", "models", "gd", "download", "gs", "monitor", "gh", "history", "gc", "config"))
		b.WriteString("\n")
		b.WriteString(a.hints("w", "save", "q", "quit"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.hints("Esc", "back"))
	return a.panel(b.String())
}

// =============================================================================
// HELPERS
// =============================================================================

func (a *App) panel(content string) string {
	height := max(1, a.height-headerHeight-statusHeight-2)
	return a.theme.Panel.
		Width(max(20, a.width-2)).
		Height(height).
		Render(content)
}

func (a *App) listRow(row string, selected bool) string {
	if selected {
		return a.theme.ListSelected.Render(row)
	}
	return a.theme.ListItem.Render(row)
}

// hints renders key/description pairs.
func (a *App) hints(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, a.theme.HelpKey.Render(pairs[i])+" "+a.theme.HelpDesc.Render(pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}

// window returns the visible slice [start, end) of n rows keeping cursor
// inside a page of size rows.
func window(cursor, n, size int) (int, int) {
	if size <= 0 || n <= size {
		return 0, n
	}
	start := cursor - size/2
	start = max(0, min(start, n-size))
	return start, start + size
}
