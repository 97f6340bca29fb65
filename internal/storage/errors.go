// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrMalformedState marks stored data that could not be decoded. Open logs
// it and starts from an empty store.
var ErrMalformedState = &ConversationError{Message: "malformed stored conversations"}

// ConversationError represents a conversation-related error.
// It implements the error interface and can be compared using errors.Is.
type ConversationError struct {
	Message string
	ID      string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(id string) error {
	return &ConversationError{Message: ErrConversationNotFound.Message, ID: id}
}
