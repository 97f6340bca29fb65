// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

// Options configures OpenAIBackend.
type Options struct {
	// BaseURL defaults to https://api.openai.com/v1.
	BaseURL string
	// Timeout bounds the whole streamed response. 0 disables it.
	Timeout time.Duration
	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client
}

// OpenAIBackend streams chat completions from an OpenAI-compatible API.
type OpenAIBackend struct {
	opts Options
}

// NewOpenAIBackend creates a backend. A client is built per request, so a
// credential change takes effect on the next message.
func NewOpenAIBackend(opts Options) *OpenAIBackend {
	return &OpenAIBackend{opts: opts}
}

func (b *OpenAIBackend) client(apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if b.opts.BaseURL != "" {
		config.BaseURL = strings.TrimRight(b.opts.BaseURL, "/")
	}
	if b.opts.HTTPClient != nil {
		config.HTTPClient = b.opts.HTTPClient
	}
	return openai.NewClientWithConfig(config)
}

// Stream implements Backend.
func (b *OpenAIBackend) Stream(ctx context.Context, req Request) (Stream, error) {
	if req.APIKey == "" {
		return nil, ErrNotConfigured
	}

	cancel := context.CancelFunc(func() {})
	if b.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: ToOpenAIMessages(req.Messages),
		Stream:   true,
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("OpenAI starting streamed completion")

	stream, err := b.client(req.APIKey).CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		cancel()
		log.Debug().Err(err).Msg("OpenAI streaming request failed")
		return nil, errors.Wrap(err, "chat completion request failed")
	}
	return &openAIStream{stream: stream, cancel: cancel}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
}

func (s *openAIStream) Recv() (Fragment, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return Fragment{}, err
	}
	if len(resp.Choices) == 0 {
		return Fragment{}, nil
	}
	choice := resp.Choices[0]
	return Fragment{
		Delta:        choice.Delta.Content,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func (s *openAIStream) Close() error {
	defer s.cancel()
	s.stream.Close()
	return nil
}

// ToOpenAIMessages converts committed messages to request messages. Multi-
// part content becomes MultiContent with text and image_url parts.
func ToOpenAIMessages(msgs []model.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.Content.IsMultipart() {
			out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content.Text()})
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(m.Content.Parts()))
		for _, p := range m.Content.Parts() {
			switch p.Type {
			case model.PartText:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			case model.PartImageURL:
				if p.ImageURL == nil {
					continue
				}
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    p.ImageURL.URL,
						Detail: openai.ImageURLDetailAuto,
					},
				})
			}
		}
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), MultiContent: parts})
	}
	return out
}
