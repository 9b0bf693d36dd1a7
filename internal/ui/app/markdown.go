// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ollama-tui/internal/model"
)

// markdownCache renders finished assistant messages once per width.
// Finished messages are immutable, so the message pointer is the key.
type markdownCache struct {
	enabled     bool
	newRenderer func(width int) (*glamour.TermRenderer, error)

	width    int
	renderer *glamour.TermRenderer
	entries  map[*model.Message]string
}

func newMarkdownCache(enabled bool, newRenderer func(width int) (*glamour.TermRenderer, error)) *markdownCache {
	return &markdownCache{
		enabled:     enabled,
		newRenderer: newRenderer,
		width:       80,
		entries:     make(map[*model.Message]string),
	}
}

func (c *markdownCache) setWidth(width int) {
	if width == c.width {
		return
	}
	c.width = width
	c.renderer = nil
	c.reset()
}

func (c *markdownCache) reset() {
	clear(c.entries)
}

// render returns the markdown rendering of m, or false when m must be shown
// as plain text (disabled, still streaming, not from the assistant, or the
// renderer failed).
func (c *markdownCache) render(m *model.Message) (string, bool) {
	if !c.enabled || m.Streaming || m.Role != model.RoleAssistant {
		return "", false
	}
	if out, ok := c.entries[m]; ok {
		return out, true
	}
	if c.renderer == nil {
		r, err := c.newRenderer(c.width)
		if err != nil {
			c.enabled = false
			return "", false
		}
		c.renderer = r
	}
	out, err := c.renderer.Render(m.Content)
	if err != nil {
		return "", false
	}
	out = strings.Trim(out, "\n")
	c.entries[m] = out
	return out, true
}
