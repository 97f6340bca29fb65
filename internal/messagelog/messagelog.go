// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package messagelog exposes the committed messages of the active
// conversation. It keeps no state of its own beyond a cache that is
// refreshed whenever the conversation store changes.
package messagelog

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

// ErrNoActiveConversation is returned by Append when nothing is active.
var ErrNoActiveConversation = errors.New("no active conversation")

// Log is a read view over the active conversation's messages.
type Log struct {
	store       *storage.Store
	unsubscribe func()

	mu       sync.RWMutex
	activeID string
	messages []model.Message
}

// New returns a Log following store's active conversation.
func New(store *storage.Store) *Log {
	l := &Log{store: store}
	l.refresh()
	l.unsubscribe = store.Subscribe(func(storage.Change) { l.refresh() })
	return l
}

func (l *Log) refresh() {
	var (
		id   string
		msgs []model.Message
	)
	if conv, ok := l.store.Active(); ok {
		id = conv.ID
		msgs = conv.Messages
	}

	l.mu.Lock()
	l.activeID = id
	l.messages = msgs
	l.mu.Unlock()
}

// Messages returns a copy of the committed messages, oldest first.
func (l *Log) Messages() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// ActiveID returns the conversation the log currently shows.
func (l *Log) ActiveID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeID
}

// Len returns the number of committed messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Append commits msgs to the active conversation through the store.
func (l *Log) Append(msgs ...model.Message) error {
	id := l.ActiveID()
	if id == "" {
		return ErrNoActiveConversation
	}
	return l.store.Append(id, msgs...)
}

// Close stops following the store.
func (l *Log) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
}
