// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to the hosted chat-completion service.
//
// A Backend turns a model, a bearer key and a message history into a Stream
// of text fragments. OpenAIBackend implements it with go-openai; tests use
// the scripted backend in cloud/cloudtest.
//
// # Key Types
//
//   - Backend: starts a streamed completion
//   - Stream: yields Fragments until io.EOF or an error
//   - OpenAIBackend: OpenAI-compatible chat completions over HTTP
//
// # Usage
//
//	backend := cloud.NewOpenAIBackend(cloud.Options{BaseURL: cfg.API.BaseURL})
//	stream, err := backend.Stream(ctx, cloud.Request{
//	    APIKey:   cred.APIKey,
//	    Model:    cred.Model,
//	    Messages: history,
//	})
//	if err != nil {
//	    return cloud.Describe(err)
//	}
//	defer stream.Close()
//	for {
//	    frag, err := stream.Recv()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
// # Security
//
// API keys are never logged.
package cloud
