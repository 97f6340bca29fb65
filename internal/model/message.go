// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// CONTENT
// =============================================================================

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ImageURL is the payload of an image_url content part.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one element of multi-part content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart returns an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: url}}
}

// Content is either plain text or an ordered list of parts. It encodes as a
// JSON string in the first case and a JSON array in the second.
type Content struct {
	text  string
	parts []ContentPart
}

// TextContent returns plain text content.
func TextContent(text string) Content {
	return Content{text: text}
}

// PartsContent returns multi-part content. The parts are copied.
func PartsContent(parts ...ContentPart) Content {
	cp := make([]ContentPart, len(parts))
	copy(cp, parts)
	return Content{parts: cp}
}

// IsMultipart reports whether the content is a part list.
func (c Content) IsMultipart() bool {
	return c.parts != nil
}

// Parts returns a copy of the parts, or nil for plain text content.
func (c Content) Parts() []ContentPart {
	if c.parts == nil {
		return nil
	}
	cp := make([]ContentPart, len(c.parts))
	for i, p := range c.parts {
		cp[i] = p
		if p.ImageURL != nil {
			u := *p.ImageURL
			cp[i].ImageURL = &u
		}
	}
	return cp
}

// Text returns the plain text, or the first text part of multi-part
// content, or "".
func (c Content) Text() string {
	if c.parts == nil {
		return c.text
	}
	for _, p := range c.parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.parts != nil {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{text: s}
		return nil
	case data[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []ContentPart{}
		}
		*c = Content{parts: parts}
		return nil
	default:
		return errors.Errorf("content must be a string or an array, got %q", truncateForError(data))
	}
}

func truncateForError(data []byte) string {
	if len(data) > 32 {
		return string(data[:32]) + "..."
	}
	return string(data)
}

// =============================================================================
// IMAGE REFERENCE
// =============================================================================

// ImageRef is an image attached to a user message, kept for rendering.
type ImageRef struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single committed turn. Messages are never edited after they
// are appended to a conversation.
type Message struct {
	Role    Role       `json:"role"`
	Content Content    `json:"content"`
	Images  []ImageRef `json:"images,omitempty"`
}

// MarshalJSON writes "images" whenever Images is non-nil, so user messages
// keep an empty list and assistant messages have no key at all.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role    Role        `json:"role"`
		Content Content     `json:"content"`
		Images  *[]ImageRef `json:"images,omitempty"`
	}
	w := wire{Role: m.Role, Content: m.Content}
	if m.Images != nil {
		w.Images = &m.Images
	}
	return json.Marshal(w)
}

// NewUserMessage composes a user message. Without images the content is the
// input text and Images is empty but non-nil. With images it is a text part (only when the input is not
// blank) followed by one image_url part per image, and the images are kept
// on the message.
func NewUserMessage(input string, images []ImageRef) Message {
	if len(images) == 0 {
		return Message{Role: RoleUser, Content: TextContent(input), Images: []ImageRef{}}
	}

	parts := make([]ContentPart, 0, len(images)+1)
	if strings.TrimSpace(input) != "" {
		parts = append(parts, TextPart(input))
	}
	for _, img := range images {
		parts = append(parts, ImagePart(img.DataURL))
	}

	refs := make([]ImageRef, len(images))
	copy(refs, images)
	return Message{Role: RoleUser, Content: Content{parts: parts}, Images: refs}
}

// NewAssistantMessage returns an assistant message with plain text content.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: TextContent(text)}
}

// Text returns the message's text. See Content.Text.
func (m Message) Text() string {
	return m.Content.Text()
}

// IsEmpty reports whether the message has neither text nor images.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Text()) == "" && len(m.Images) == 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{Role: m.Role, Content: Content{text: m.Content.text, parts: m.Content.Parts()}}
	if m.Images != nil {
		out.Images = make([]ImageRef, len(m.Images))
		copy(out.Images, m.Images)
	}
	return out
}
