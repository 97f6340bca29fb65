// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bensaine/payg-chatgpt/internal/util"
)

// FileStore persists all values as one JSON object. Every change rewrites
// the whole file atomically.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// NewFileStore loads path if it exists. A missing file is an empty store; a
// file that cannot be parsed is also treated as empty and is replaced by the
// next write.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.values); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("state file is corrupt, starting empty")
		fs.values = make(map[string]string)
	}
	return fs, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flushLocked(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.flushLocked(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	if err := util.AtomicWriteFile(f.path, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write %s", f.path)
	}
	return nil
}
