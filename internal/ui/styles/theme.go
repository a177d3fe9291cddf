// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// THEME
// =============================================================================

// Theme holds all the configured Lip Gloss styles for the chat screen.
type Theme struct {
	// IsDark reports whether the theme renders against a dark background.
	IsDark bool

	// App container
	App       lipgloss.Style
	Container lipgloss.Style

	// Header
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// Message bubbles
	UserBubble  lipgloss.Style
	ReplyBubble lipgloss.Style
	ErrorBubble lipgloss.Style

	// Message adornments
	SpeakerName     lipgloss.Style
	Timestamp       lipgloss.Style
	ModelTag        lipgloss.Style
	TruncatedMarker lipgloss.Style
	StreamCursor    lipgloss.Style

	// Input area
	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// Status bar and banners
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	LimitBanner lipgloss.Style
	HelpText    lipgloss.Style
}

// NewTheme creates a theme for the given mode: "dark", "light", or "auto".
// Auto keeps terminal background detection; the other two force it.
func NewTheme(mode string) *Theme {
	switch mode {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}

	t := &Theme{IsDark: lipgloss.HasDarkBackground()}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// App container
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Sky).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 2).
		MarginLeft(4)

	t.ReplyBubble = lipgloss.NewStyle().
		Foreground(ReplyBubbleFg).
		Background(ReplyBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ReplyBubbleBorder).
		Padding(0, 2).
		MarginRight(4)

	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(ErrorBubbleFg).
		Background(ErrorBubbleBg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Rose).
		BorderLeft(true).
		PaddingLeft(2)

	// Message adornments
	t.SpeakerName = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ModelTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.TruncatedMarker = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.StreamCursor = lipgloss.NewStyle().
		Foreground(Violet).
		Bold(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar and banners
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	t.LimitBanner = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Amber).
		Padding(0, 2)

	t.HelpText = lipgloss.NewStyle().
		Foreground(TextMuted)
}
