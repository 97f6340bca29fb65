// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := Open(BackendFile, filepath.Join(dir, "file"))
	require.NoError(t, err)
	sqliteStore, err := Open(BackendSQLite, filepath.Join(dir, "sqlite"))
	require.NoError(t, err)

	stores := map[string]Store{
		BackendFile:   fileStore,
		BackendSQLite: sqliteStore,
		BackendMemory: NewMemoryStore(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(KeyModel)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(KeyModel, "gpt-4o"))
			require.NoError(t, store.Set(KeyModel, "gpt-4"))

			v, ok, err := store.Get(KeyModel)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "gpt-4", v)

			require.NoError(t, store.Delete(KeyModel))
			_, ok, err = store.Get(KeyModel)
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting a missing key is fine.
			require.NoError(t, store.Delete("missing"))
		})
	}
}

func TestFileStore_Reload(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(BackendFile, dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyConversations, `[{"id":"1"}]`))
	require.NoError(t, store.Set(KeyActiveConvID, "1"))
	require.NoError(t, store.Close())

	reopened, err := Open(BackendFile, dir)
	require.NoError(t, err)
	v, ok, err := reopened.Get(KeyConversations)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)
}

func TestSQLiteStore_Reload(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(BackendSQLite, dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyAPIKey, "sk-test"))
	require.NoError(t, store.Close())

	reopened, err := Open(BackendSQLite, dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(KeyAPIKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-test", v)
}

func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, StateFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok, err := store.Get(KeyConversations)
	require.NoError(t, err)
	assert.False(t, ok)

	// The next write replaces the corrupt file.
	require.NoError(t, store.Set(KeyModel, "gpt-4o"))
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, _ := reopened.Get(KeyModel)
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o", v)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestMemoryStore_FailWrites(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("a", "1"))

	store.FailWrites = os.ErrPermission
	assert.ErrorIs(t, store.Set("a", "2"), os.ErrPermission)

	v, _, _ := store.Get("a")
	assert.Equal(t, "1", v)
}
