// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// DefaultTopic is the topic session events are published on.
const DefaultTopic = "payg.session"

// WatermillSink publishes events to a watermill Publisher as JSON messages.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillSink creates a WatermillSink publishing to topic.
func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishEvent serializes the event and publishes it.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published event to watermill")
	return nil
}

var _ Sink = (*WatermillSink)(nil)

// NewOrderedPubSub returns an in-process pub/sub that delivers messages in
// publish order: Publish blocks until the subscriber acks.
func NewOrderedPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NopLogger{})
}
