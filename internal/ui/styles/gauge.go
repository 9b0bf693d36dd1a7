// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// GAUGES
// =============================================================================

var (
	GaugeFull    = "#"
	GaugeEmpty   = "-"
	GaugePartial = []string{".", ":", "+"}
)

// Usage thresholds for GaugeColor.
const (
	GaugeWarnPercent     = 60.0
	GaugeCriticalPercent = 85.0
)

// RenderGauge draws an uncolored bar of width cells for a 0-100 percentage.
// Out-of-range percentages are clamped.
func RenderGauge(width int, percent float64) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := float64(width) * percent / 100
	full := int(filled)
	partial := int((filled - float64(full)) * float64(len(GaugePartial)+1))

	var sb strings.Builder
	sb.Grow(width)
	for i := 0; i < full; i++ {
		sb.WriteString(GaugeFull)
	}
	if full < width && partial > 0 {
		sb.WriteString(GaugePartial[partial-1])
		full++
	}
	for i := full; i < width; i++ {
		sb.WriteString(GaugeEmpty)
	}
	return sb.String()
}

// GaugeColor picks the usage color for a percentage.
func GaugeColor(percent float64) lipgloss.AdaptiveColor {
	switch {
	case percent >= GaugeCriticalPercent:
		return Rose
	case percent >= GaugeWarnPercent:
		return Amber
	default:
		return Emerald
	}
}

// RenderColoredGauge is RenderGauge in the usage color of percent.
func RenderColoredGauge(width int, percent float64) string {
	return lipgloss.NewStyle().
		Foreground(GaugeColor(percent)).
		Render(RenderGauge(width, percent))
}
