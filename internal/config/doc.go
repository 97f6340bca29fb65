// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for payg.
//
// Configuration is TOML with built-in defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - StorageConfig: Where and how conversations and credentials are kept
//   - APIConfig: Completion endpoint settings
//   - StreamConfig: Fragment pacing
//   - AttachmentsConfig: Image staging behavior
//   - LogConfig: Log level, format and file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PAYG_*)
//   - ~/.payg/config.toml (or the path given with --config)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	dir, _ := cfg.DataDir()
package config
