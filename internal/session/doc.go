// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs one streamed assistant response at a time and
// commits it to the conversation it was started for.
//
// A Session moves through these states:
//
//	Idle -> Sending -> Streaming -> Committed | Aborted -> Idle
//
// Sending covers the time between submitting the request and the first
// fragment. Committed follows a clean end of stream; Aborted follows a
// failed request, whose error text is committed in-band with whatever was
// received. Abandon discards the live buffer and returns to Idle without
// committing anything.
//
// # Key Types
//
//   - Session: the state machine and its live buffer
//   - Request: conversation, credential, history and the new user message
//   - Snapshot: a consistent read of state, buffer and pending message
//
// # Usage
//
//	s := session.New(backend, store, session.DefaultConfig()).
//	    WithSink(events.SinkFunc(func(e events.Event) error {
//	        fmt.Print(e.Delta)
//	        return nil
//	    }))
//
//	err := s.Start(ctx, session.Request{
//	    ConversationID: conv.ID,
//	    Credential:     cred,
//	    History:        conv.Messages,
//	    Message:        model.NewUserMessage("Hello!", nil),
//	})
//	s.Wait()
//
// # Concurrency
//
// One goroutine consumes the stream and is the only writer of the live
// buffer. Sinks are called from that goroutine, one event at a time, in
// event order.
package session
