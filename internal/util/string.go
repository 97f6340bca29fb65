// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended by Ellipsize when it cuts a string.
const Ellipsis = "..."

// Ellipsize keeps the first maxRunes characters of s and appends "..." when
// anything was cut. Unlike a display truncation the ellipsis is not counted
// against maxRunes.
func Ellipsize(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + Ellipsis
}

// TruncateWidth cuts s to at most width terminal columns, ending in "..."
// when it had to cut. Wide (CJK) characters count as two columns.
func TruncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// PadRight truncates s to width columns and pads it with spaces to exactly
// width columns.
func PadRight(s string, width int) string {
	return runewidth.FillRight(TruncateWidth(s, width), width)
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
