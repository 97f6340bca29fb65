// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kv is the durable string key-value layer underneath the
// credential and conversation stores.
//
// # Key Types
//
//   - Store: Get/Set/Delete of string values
//   - FileStore: one JSON object file, rewritten atomically on every change
//   - SQLiteStore: a single kv table in a WAL-mode SQLite database
//   - MemoryStore: map-backed, nothing survives the process
//
// # Usage
//
//	store, err := kv.Open(kv.BackendFile, dataDir)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_ = store.Set(kv.KeyModel, "gpt-4o")
package kv
