// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events defines the notifications a streaming session publishes
// and the sinks that receive them.
package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

// EventType identifies an Event.
type EventType string

const (
	// EventTypeStart is published when a request is sent.
	EventTypeStart EventType = "start"
	// EventTypePartial carries one non-empty fragment and the buffer so far.
	EventTypePartial EventType = "partial"
	// EventTypeFinal follows a successful commit.
	EventTypeFinal EventType = "final"
	// EventTypeError follows a failed request (committed in-band) or a
	// failed commit.
	EventTypeError EventType = "error"
	// EventTypeInterrupt is published when a stream is abandoned. Nothing is
	// committed.
	EventTypeInterrupt EventType = "interrupt"
)

// Event is a single session notification.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
	Time           time.Time `json:"time"`

	// Delta is the fragment text of a partial event.
	Delta string `json:"delta,omitempty"`
	// Buffer is the accumulated response so far.
	Buffer string `json:"buffer,omitempty"`
	// Error describes the failure of an error event.
	Error string `json:"error,omitempty"`
	// Message is the committed assistant message of final and error events.
	Message *model.Message `json:"message,omitempty"`
}

// IsTerminal reports whether no further events follow for this request.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventTypeFinal, EventTypeError, EventTypeInterrupt:
		return true
	}
	return false
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type)).
		Str("conversation", e.ConversationID).
		Int("buffer_len", len(e.Buffer))
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

// Decode parses an event published by WatermillSink.
func Decode(payload []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(payload, &e)
	return e, err
}

// Sink receives events. PublishEvent is called synchronously from the
// session goroutine, in event order.
type Sink interface {
	PublishEvent(event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event Event) error

// PublishEvent calls f.
func (f SinkFunc) PublishEvent(event Event) error {
	return f(event)
}
