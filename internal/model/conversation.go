// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/bensaine/payg-chatgpt/internal/util"
)

const (
	// DefaultTitle is the title of a conversation nobody has named yet.
	DefaultTitle = "New Chat"

	// ImageTitle is used when the first user message has no text.
	ImageTitle = "Image message"

	// TitleMaxRunes is how much of the first message becomes the title.
	TitleMaxRunes = 30
)

// Conversation is a titled, ordered message log.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	// Renamed is set once the user has chosen a title.
	Renamed bool `json:"renamed,omitempty"`
}

// NewConversation returns an empty conversation with the default title.
func NewConversation(id string, createdAt time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: createdAt,
	}
}

// HasDefaultTitle reports whether the title is still the sentinel.
func (c *Conversation) HasDefaultTitle() bool {
	return c.Title == DefaultTitle
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Preview returns a one-line preview of the last message.
func (c *Conversation) Preview(maxRunes int) string {
	if len(c.Messages) == 0 {
		return ""
	}
	last := c.Messages[len(c.Messages)-1]
	text := strings.Join(strings.Fields(last.Text()), " ")
	if text == "" && len(last.Images) > 0 {
		return "[image]"
	}
	return util.Ellipsize(text, maxRunes)
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		clone.Messages[i] = m.Clone()
	}
	return &clone
}

// DeriveTitle returns the title for a conversation whose first user message
// has the given text: the first 30 characters, plus "..." when longer. Text
// that is blank yields ImageTitle.
func DeriveTitle(text string) string {
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return ImageTitle
	}
	return util.Ellipsize(text, TitleMaxRunes)
}
