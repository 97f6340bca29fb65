// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Well-known keys.
const (
	KeyAPIKey        = "openai_api_key"
	KeyModel         = "preferred_model"
	KeyConversations = "conversations"
	KeyActiveConvID  = "current_conversation_id"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// File names inside the data directory.
const (
	StateFileName  = "state.json"
	SQLiteFileName = "payg.db"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is a minimal durable string key-value store.
// A nil error from Set or Delete means the change is durable.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Open returns the store for the named backend, rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, StateFileName))
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}
