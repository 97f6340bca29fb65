// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as Markdown, JSON or YAML.
//
// # Key Types
//
//   - Exporter: Writes one conversation in one format
//   - Options: Export configuration options
//
// # Supported Formats
//
//   - Markdown: Human-readable, with YAML front matter
//   - JSON: The stored conversation as-is, suitable for re-import
//   - YAML: Flattened text content, one entry per message
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(conv, exporter, "exports")
package export
