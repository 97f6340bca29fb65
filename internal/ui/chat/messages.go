// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// refreshMsg asks the model to redraw from a fresh View.
type refreshMsg struct{}

// statusMsg sets the status line.
type statusMsg struct {
	text string
	err  bool
}
