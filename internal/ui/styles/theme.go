// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeNoTTY = "notty"
)

// Theme holds all the styled components for the application.
type Theme struct {
	Name string

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	ErrorText      lipgloss.Style
	Streaming      lipgloss.Style

	// Conversation sidebar
	Sidebar       lipgloss.Style
	SidebarItem   lipgloss.Style
	SidebarActive lipgloss.Style

	// Input area
	InputPrompt lipgloss.Style
	Staged      lipgloss.Style

	// Status line
	Status      lipgloss.Style
	StatusError lipgloss.Style
	StatusOK    lipgloss.Style
	Muted       lipgloss.Style
}

// NewTheme builds the theme called name. Unknown names fall back to auto.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case ThemeDark, ThemeLight, ThemeNoTTY:
	default:
		name = ThemeAuto
	}
	t := &Theme{Name: name}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style name for the theme.
func (t *Theme) GlamourStyle() string {
	switch t.Name {
	case ThemeDark:
		return "dark"
	case ThemeLight:
		return "light"
	case ThemeNoTTY:
		return "notty"
	default:
		return "auto"
	}
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)
	t.Streaming = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.SidebarActive = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.Staged = lipgloss.NewStyle().
		Foreground(Amber)

	t.Status = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald)
	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}
