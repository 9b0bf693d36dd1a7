// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the global and per-mode key bindings. It implements
// help.KeyMap for the Help mode.
type KeyMap struct {
	Help       key.Binding
	Models     key.Binding
	Download   key.Binding
	Monitor    key.Binding
	History    key.Binding
	Save       key.Binding
	Clear      key.Binding
	Config     key.Binding
	SelectLast key.Binding
	Copy       key.Binding
	Quit       key.Binding

	Submit   key.Binding
	Back     key.Binding
	Up       key.Binding
	Down     key.Binding
	NextItem key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Delete   key.Binding
	Prev     key.Binding
	Next     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Help:       key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", "help")),
		Models:     key.NewBinding(key.WithKeys("f2"), key.WithHelp("F2", "select model")),
		Download:   key.NewBinding(key.WithKeys("f3"), key.WithHelp("F3", "download model")),
		Monitor:    key.NewBinding(key.WithKeys("f4"), key.WithHelp("F4", "system monitor")),
		History:    key.NewBinding(key.WithKeys("f5"), key.WithHelp("F5", "chat history")),
		Save:       key.NewBinding(key.WithKeys("f6"), key.WithHelp("F6", "save chat")),
		Clear:      key.NewBinding(key.WithKeys("f7"), key.WithHelp("F7", "clear chat")),
		Config:     key.NewBinding(key.WithKeys("f8"), key.WithHelp("F8", "model config")),
		SelectLast: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("C-s", "select last message")),
		Copy:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("C-y", "copy selection")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("C-c", "quit")),

		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "submit/confirm")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "back/cancel")),
		Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("Up", "move up")),
		Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("Down", "move down")),
		NextItem: key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "next field")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("PgUp", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("PgDn", "scroll down")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete (lists)")),
		Prev:     key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("C-p", "previous prompt")),
		Next:     key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("C-n", "next prompt")),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Models, k.Download, k.History, k.Config, k.Quit}
}

// FullHelp returns the bindings shown in Help mode, grouped by column.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Help, k.Models, k.Download, k.Monitor, k.History, k.Save, k.Clear, k.Config},
		{k.Submit, k.Back, k.Up, k.Down, k.NextItem, k.PageUp, k.PageDown, k.Delete},
		{k.SelectLast, k.Copy, k.Prev, k.Next, k.Quit},
	}
}
