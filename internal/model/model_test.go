// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"long", "Explain recursion in programming languages please", "Explain recursion in programmi..."},
		{"short", "hi", "hi"},
		{"exactly thirty", "123456789012345678901234567890", "123456789012345678901234567890"},
		{"blank", "   ", ImageTitle},
		{"empty", "", ImageTitle},
		// "e" + combining acute is composed to one character.
		{"nfc", "cafe\u0301", "caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.in))
		})
	}
}

func TestNewUserMessage_TextOnly(t *testing.T) {
	msg := NewUserMessage("hello", nil)

	assert.Equal(t, RoleUser, msg.Role)
	assert.False(t, msg.Content.IsMultipart())
	assert.Equal(t, "hello", msg.Text())
	assert.NotNil(t, msg.Images)
	assert.Empty(t, msg.Images)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello","images":[]}`, string(data))
}

func TestMessage_ImagesKeyRoundTrip(t *testing.T) {
	stored := `[{"role":"user","content":"hi","images":[]},{"role":"assistant","content":"hello"}]`

	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(stored), &msgs))
	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[0].Images)
	assert.Nil(t, msgs[1].Images)
	assert.NotNil(t, msgs[0].Clone().Images)

	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	assert.Equal(t, stored, string(data))
}

func TestNewUserMessage_WithImages(t *testing.T) {
	images := []ImageRef{
		{Name: "a.png", DataURL: "data:image/png;base64,AAAA"},
		{Name: "b.jpg", DataURL: "data:image/jpeg;base64,BBBB"},
	}
	msg := NewUserMessage(" look ", images)

	parts := msg.Content.Parts()
	require.Len(t, parts, 3)
	assert.Equal(t, TextPart(" look "), parts[0])
	assert.Equal(t, ImagePart("data:image/png;base64,AAAA"), parts[1])
	assert.Equal(t, ImagePart("data:image/jpeg;base64,BBBB"), parts[2])
	assert.Equal(t, images, msg.Images)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role":"user",
		"content":[
			{"type":"text","text":" look "},
			{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}},
			{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,BBBB"}}
		],
		"images":[
			{"name":"a.png","dataUrl":"data:image/png;base64,AAAA"},
			{"name":"b.jpg","dataUrl":"data:image/jpeg;base64,BBBB"}
		]
	}`, string(data))
}

func TestNewUserMessage_ImageOnly(t *testing.T) {
	msg := NewUserMessage("  ", []ImageRef{{Name: "a.png", DataURL: "data:image/png;base64,AAAA"}})

	parts := msg.Content.Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, PartImageURL, parts[0].Type)
	assert.Equal(t, "", msg.Text())
	assert.False(t, msg.IsEmpty())
	assert.Equal(t, ImageTitle, DeriveTitle(msg.Text()))
}

func TestContent_UnmarshalInvalid(t *testing.T) {
	var c Content
	assert.Error(t, json.Unmarshal([]byte(`42`), &c))

	require.NoError(t, json.Unmarshal([]byte(`null`), &c))
	assert.Equal(t, "", c.Text())
	assert.False(t, c.IsMultipart())
}

func TestConversation_RoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 4, 5, 6, 7, 123456789, time.UTC)
	conv := NewConversation("id-1", created)
	conv.Title = "Shapes"
	conv.Messages = append(conv.Messages,
		NewUserMessage("what shape?", []ImageRef{{Name: "s.png", DataURL: "data:image/png;base64,AA=="}}),
		NewAssistantMessage("A circle."),
	)

	data, err := json.Marshal([]*Conversation{conv})
	require.NoError(t, err)

	var loaded []*Conversation
	require.NoError(t, json.Unmarshal(data, &loaded))
	require.Len(t, loaded, 1)
	assert.Equal(t, conv, loaded[0])
}

func TestConversation_CloneIsDeep(t *testing.T) {
	conv := NewConversation("id", time.Now())
	conv.Messages = append(conv.Messages, NewUserMessage("x", []ImageRef{{Name: "n", DataURL: "d"}}))

	clone := conv.Clone()
	clone.Messages[0].Images[0].Name = "changed"
	clone.Messages = append(clone.Messages, NewAssistantMessage("y"))

	assert.Equal(t, "n", conv.Messages[0].Images[0].Name)
	assert.Len(t, conv.Messages, 1)
}

func TestConversation_Preview(t *testing.T) {
	conv := NewConversation("id", time.Now())
	assert.Equal(t, "", conv.Preview(10))

	conv.Messages = append(conv.Messages, NewAssistantMessage("line one\nline two and more"))
	assert.Equal(t, "line one l...", conv.Preview(10))
}

func TestSupportedModels(t *testing.T) {
	ids := SupportedModelIDs()
	assert.Equal(t, []string{"gpt-5", "gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}, ids)
	assert.True(t, IsSupportedModel(DefaultModel))
	assert.True(t, IsSupportedModel("GPT-4O"))
	assert.False(t, IsSupportedModel("claude-3-opus"))

	info, ok := GetModelInfo("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "128K", info.ContextString())
}
