// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the stores, the
// streaming session and the presentation layers.
//
// # Key Types
//
//   - Conversation: id, title, ordered messages and creation time
//   - Message: role plus content, with optional image references
//   - Content: plain text or an ordered list of text / image_url parts
//   - ImageRef: display name and data URL of an attached image
//   - ModelInfo: a selectable completion model
//
// # Usage
//
// Compose a user message with an attached image:
//
//	msg := model.NewUserMessage("What is in this picture?", []model.ImageRef{
//	    {Name: "cat.png", DataURL: "data:image/png;base64,..."},
//	})
//
// Derive a title from the first user message:
//
//	title := model.DeriveTitle(msg.Text())
package model
