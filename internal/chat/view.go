// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/session"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

// View is a snapshot of everything a renderer shows.
type View struct {
	Conversations []storage.Summary
	ActiveID      string
	ActiveTitle   string

	// Messages are the committed messages of the active conversation.
	Messages []model.Message

	// Stream is the session state. Pending and Buffer belong to
	// Stream.ConversationID, which may differ from ActiveID.
	Stream session.Snapshot

	Staged        []model.ImageRef
	PendingImages int

	HasCredential bool
	Model         string
}

// StreamingHere reports whether a response is streaming into the active
// conversation.
func (v View) StreamingHere() bool {
	return v.Stream.State.InFlight() && v.Stream.ConversationID == v.ActiveID
}

// View reads the current state.
func (c *Controller) View() View {
	cred, ok := c.creds.Get()
	v := View{
		Conversations: c.store.List(),
		ActiveID:      c.log.ActiveID(),
		Messages:      c.log.Messages(),
		Stream:        c.session.Snapshot(),
		Staged:        c.stager.Items(),
		PendingImages: c.stager.Pending(),
		HasCredential: ok,
		Model:         cred.Model,
	}
	for _, s := range v.Conversations {
		if s.ID == v.ActiveID {
			v.ActiveTitle = s.Title
		}
	}
	return v
}
