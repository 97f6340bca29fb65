// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the payg terminal UI.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values, so the same palette works on
light and dark terminals:

	Purple  - Assistant messages and selections
	Cyan    - User messages and the brand
	Emerald - Success states
	Amber   - Staged attachments and warnings
	Rose    - Errors

# Theme System (theme.go)

A Theme bundles the styles a view needs. "dark" and "light" force the
background used by the markdown renderer, "notty" renders plain text and
"auto" lets the terminal decide:

	theme := styles.NewTheme("auto")
	title := theme.HeaderTitle.Render("New Chat")
*/
package styles
