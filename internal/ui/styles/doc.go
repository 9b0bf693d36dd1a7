// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the ollama-tui screens.

All colors are Lip Gloss AdaptiveColor values so the same palette works on
light and dark terminals.

# Color System (colors.go)

  - Purple: assistant messages, selections
  - Cyan: brand, user messages, key hints
  - Emerald: success, low resource usage
  - Amber: warnings, medium resource usage, streaming
  - Rose: errors, high resource usage

# Theme (theme.go)

Theme detects the terminal once through termenv and holds every style the
screens use:

	theme := styles.NewTheme()
	title := theme.HeaderTitle.Render("ollama-tui")

GlamourStyle reports the matching glamour standard style ("dark" or
"light") for markdown rendering.

# Gauges (gauge.go)

RenderGauge draws the ASCII bars of the monitor and download screens, and
GaugeColor picks the usage color for a percentage.
*/
package styles
