// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	ModeBadge      lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	MessageStats   lipgloss.Style
	Streaming      lipgloss.Style

	// ==========================================================================
	// INPUT STYLES
	// ==========================================================================

	Input        lipgloss.Style
	InputFocused lipgloss.Style
	InputPrompt  lipgloss.Style

	// ==========================================================================
	// LIST AND PANEL STYLES
	// ==========================================================================

	Panel        lipgloss.Style
	PanelTitle   lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	ListMeta     lipgloss.Style
	FieldLabel   lipgloss.Style
	FieldValue   lipgloss.Style
	FieldEditing lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar     lipgloss.Style
	StatusKey     lipgloss.Style
	StatusText    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusInfo    lipgloss.Style

	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
	Muted    lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	return newTheme(termenv.HasDarkBackground(), profile)
}

func newTheme(isDark bool, profile termenv.Profile) *Theme {
	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.ModeBadge = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 1)

	// Messages
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(UserLabel)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(AssistantLabel)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(SystemLabel)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.MessageStats = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.Streaming = lipgloss.NewStyle().Foreground(Amber)

	// Input
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputFocused = t.Input.
		BorderForeground(Cyan)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	// Lists and panels
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		MarginBottom(1)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ListSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary).
		Background(SelectionBg).
		PaddingLeft(1).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(Cyan)

	t.ListMeta = lipgloss.NewStyle().Foreground(TextMuted)

	t.FieldLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(18)

	t.FieldValue = lipgloss.NewStyle().Foreground(TextPrimary)

	t.FieldEditing = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceBright).
		Underline(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.StatusText = lipgloss.NewStyle().Foreground(TextSecondary)
	t.StatusError = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.StatusWarning = lipgloss.NewStyle().Bold(true).Foreground(Amber)
	t.StatusSuccess = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.StatusInfo = lipgloss.NewStyle().Foreground(Cyan)

	t.HelpKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HelpDesc = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GlamourStyle returns the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// =============================================================================
// STATUS RENDERING
// =============================================================================

// RenderSuccess renders a success message with its indicator.
func (t *Theme) RenderSuccess(message string) string {
	return t.StatusSuccess.Render(StatusIndicators.Success + " " + message)
}

// RenderError renders an error message with its indicator.
func (t *Theme) RenderError(message string) string {
	return t.StatusError.Render(StatusIndicators.Error + " " + message)
}

// RenderWarning renders a warning message with its indicator.
func (t *Theme) RenderWarning(message string) string {
	return t.StatusWarning.Render(StatusIndicators.Warning + " " + message)
}

// RenderInfo renders an informational message with its indicator.
func (t *Theme) RenderInfo(message string) string {
	return t.StatusInfo.Render(StatusIndicators.Info + " " + message)
}
