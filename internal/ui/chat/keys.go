// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit        key.Binding
	Abandon       key.Binding
	NewChat       key.Binding
	PrevChat      key.Binding
	NextChat      key.Binding
	ToggleSidebar key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	Help          key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Abandon: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop response"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		PrevChat: key.NewBinding(
			key.WithKeys("alt+up", "ctrl+p"),
			key.WithHelp("M-up/C-p", "previous chat"),
		),
		NextChat: key.NewBinding(
			key.WithKeys("alt+down", "ctrl+o"),
			key.WithHelp("M-down/C-o", "next chat"),
		),
		ToggleSidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "toggle chats"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Abandon, k.NewChat, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Abandon, k.Quit},
		{k.NewChat, k.PrevChat, k.NextChat, k.ToggleSidebar},
		{k.PageUp, k.PageDown, k.Help},
	}
}
