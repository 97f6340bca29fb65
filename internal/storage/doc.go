// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for payg.
//
// The Store keeps every conversation in memory, newest first, and writes the
// whole collection plus the active conversation id through a kv.Store on
// every mutation. A mutation that returns nil is durable; one that fails to
// persist leaves the in-memory state unchanged.
//
// # Key Types
//
//   - Store: conversation CRUD, title derivation, active id, observers
//   - Summary: lightweight metadata for listing
//   - Change: notification delivered to observers after each mutation
//
// # Usage
//
//	store, err := storage.Open(backing)
//	conv, err := store.Create()
//	err = store.Append(conv.ID, model.NewUserMessage("hi", nil))
//
//	unsubscribe := store.Subscribe(func(c storage.Change) {
//	    fmt.Println(c.Kind, c.ID)
//	})
//	defer unsubscribe()
//
// # Storage Layout
//
// Conversations are stored as one JSON array under the "conversations" key
// and the active id under "current_conversation_id".
package storage
