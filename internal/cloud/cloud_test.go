// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

func sseServer(t *testing.T, check func(*http.Request, openai.ChatCompletionRequest), deltas ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(r, req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			chunk := openai.ChatCompletionStreamResponse{
				ID:    "chatcmpl-1",
				Model: req.Model,
				Choices: []openai.ChatCompletionStreamChoice{
					{Index: 0, Delta: openai.ChatCompletionStreamChoiceDelta{Content: d}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, s Stream) string {
	t.Helper()
	defer s.Close()
	var sb strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String()
		}
		require.NoError(t, err)
		sb.WriteString(frag.Delta)
	}
}

func TestOpenAIBackend_Stream(t *testing.T) {
	srv := sseServer(t, func(r *http.Request, req openai.ChatCompletionRequest) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)
	}, "Hel", "lo", "!")
	defer srv.Close()

	backend := NewOpenAIBackend(Options{BaseURL: srv.URL + "/v1/"})
	stream, err := backend.Stream(context.Background(), Request{
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
		Messages: []model.Message{model.NewUserMessage("hello", nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", collect(t, stream))
	// Closing twice is harmless.
	assert.NoError(t, stream.Close())
}

func TestOpenAIBackend_MissingKey(t *testing.T) {
	_, err := NewOpenAIBackend(Options{}).Stream(context.Background(), Request{Model: "gpt-4o"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenAIBackend_APIErrorIsDescribed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided: sk-bad.","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	backend := NewOpenAIBackend(Options{BaseURL: srv.URL})
	_, err := backend.Stream(context.Background(), Request{APIKey: "sk-bad", Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, "401 Incorrect API key provided: sk-bad.", Describe(err))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
	assert.Equal(t, ErrTimeout.Error(), Describe(errors.Wrap(context.DeadlineExceeded, "stream")))
	assert.Equal(t, "429 Rate limit reached", Describe(&openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"}))
	assert.Equal(t, "Server overloaded", Describe(&openai.APIError{Message: "Server overloaded"}))
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := []model.Message{
		model.NewUserMessage("what is this?", []model.ImageRef{{Name: "a.png", DataURL: "data:image/png;base64,AA=="}}),
		model.NewAssistantMessage("a square"),
	}

	out := ToOpenAIMessages(msgs)
	require.Len(t, out, 2)

	assert.Equal(t, openai.ChatMessageRoleUser, out[0].Role)
	assert.Empty(t, out[0].Content)
	require.Len(t, out[0].MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, out[0].MultiContent[0].Type)
	assert.Equal(t, "what is this?", out[0].MultiContent[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, out[0].MultiContent[1].Type)
	assert.Equal(t, "data:image/png;base64,AA==", out[0].MultiContent[1].ImageURL.URL)

	assert.Equal(t, openai.ChatMessageRoleAssistant, out[1].Role)
	assert.Equal(t, "a square", out[1].Content)
}
