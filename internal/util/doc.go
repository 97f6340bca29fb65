// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the payg packages.
//
// # Key Functions
//
// String Utilities:
//   - Ellipsize: rune-safe prefix with a trailing "..." when truncated
//   - PadRight / TruncateWidth: display-width aware formatting for listings
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.Ellipsize("Explain recursion in programming languages", 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
