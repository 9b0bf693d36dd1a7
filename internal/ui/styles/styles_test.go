// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewThemeStyles(t *testing.T) {
	theme := newTheme(true, termenv.Ascii)
	if theme.HasTrueColor {
		t.Error("ascii profile should not report true color")
	}

	rendered := theme.ListSelected.Render("item")
	if !strings.Contains(rendered, "item") {
		t.Errorf("ListSelected dropped its content: %q", rendered)
	}
}

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		dark bool
		want string
	}{
		{true, "dark"},
		{false, "light"},
	}
	for _, tt := range tests {
		if got := newTheme(tt.dark, termenv.Ascii).GlamourStyle(); got != tt.want {
			t.Errorf("GlamourStyle(dark=%v) = %q, want %q", tt.dark, got, tt.want)
		}
	}
}

func TestRenderStatusIncludesIndicator(t *testing.T) {
	theme := newTheme(true, termenv.Ascii)
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"success", theme.RenderSuccess("saved"), "[OK] saved"},
		{"error", theme.RenderError("failed"), "[X] failed"},
		{"warning", theme.RenderWarning("clamped"), "[!] clamped"},
		{"info", theme.RenderInfo("hint"), "[i] hint"},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.got, tt.want) {
			t.Errorf("%s: %q does not contain %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestSetSize(t *testing.T) {
	theme := newTheme(false, termenv.Ascii)
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize: got %dx%d", theme.Width, theme.Height)
	}
}

// =============================================================================
// GAUGE TESTS
// =============================================================================

func TestRenderGauge(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		percent float64
		want    string
	}{
		{"empty", 10, 0, "----------"},
		{"full", 10, 100, "##########"},
		{"half", 10, 50, "#####-----"},
		{"partial cell", 4, 40, "#:--"},
		{"clamped high", 4, 250, "####"},
		{"clamped low", 4, -5, "----"},
		{"zero width", 0, 50, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderGauge(tt.width, tt.percent); got != tt.want {
				t.Errorf("RenderGauge(%d, %v) = %q, want %q", tt.width, tt.percent, got, tt.want)
			}
		})
	}
}

func TestGaugeColor(t *testing.T) {
	if GaugeColor(10) != Emerald {
		t.Error("low usage should be emerald")
	}
	if GaugeColor(GaugeWarnPercent) != Amber {
		t.Error("warn threshold should be amber")
	}
	if GaugeColor(99) != Rose {
		t.Error("critical usage should be rose")
	}
}
