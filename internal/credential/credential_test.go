// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bensaine/payg-chatgpt/internal/kv"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

func newTestStore(backing kv.Store, env map[string]string) *Store {
	s := NewStore(backing)
	s.getenv = func(k string) string { return env[k] }
	return s
}

func TestStore_AbsentByDefault(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), nil)

	c, ok := s.Get()
	assert.False(t, ok)
	assert.Equal(t, model.DefaultModel, c.Model)
}

func TestStore_SetPersists(t *testing.T) {
	backing := kv.NewMemoryStore()
	s := newTestStore(backing, nil)

	require.NoError(t, s.Set("sk-abc", "gpt-4o"))

	c, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, Credential{APIKey: "sk-abc", Model: "gpt-4o"}, c)

	// A fresh store over the same backing sees the values.
	reloaded := newTestStore(backing, nil)
	c, ok = reloaded.Get()
	require.True(t, ok)
	assert.Equal(t, "sk-abc", c.APIKey)
	assert.Equal(t, "gpt-4o", c.Model)
}

func TestStore_UnsupportedModel(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), nil)

	err := s.Set("sk-abc", "davinci")
	assert.True(t, errors.Is(err, ErrUnsupportedModel))
	assert.ErrorIs(t, s.SetModel("davinci"), ErrUnsupportedModel)

	_, ok := s.Get()
	assert.False(t, ok)
}

func TestStore_UnrecognizedSavedModelFallsBack(t *testing.T) {
	backing := kv.NewMemoryStore()
	require.NoError(t, backing.Set(kv.KeyAPIKey, "sk-abc"))
	require.NoError(t, backing.Set(kv.KeyModel, "text-davinci-003"))

	c, ok := newTestStore(backing, nil).Get()
	require.True(t, ok)
	assert.Equal(t, model.DefaultModel, c.Model)
}

func TestStore_EnvFallback(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), map[string]string{EnvAPIKey: "sk-env"})

	c, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "sk-env", c.APIKey)

	// A saved key wins over the environment.
	require.NoError(t, s.Set("sk-saved", "gpt-4"))
	c, _ = s.Get()
	assert.Equal(t, "sk-saved", c.APIKey)
}

func TestStore_SetModel(t *testing.T) {
	backing := kv.NewMemoryStore()
	s := newTestStore(backing, nil)

	require.NoError(t, s.SetModel("gpt-5"))
	assert.Equal(t, "gpt-5", s.Model())

	v, ok, err := backing.Get(kv.KeyModel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gpt-5", v)
}

func TestStore_WriteFailure(t *testing.T) {
	backing := kv.NewMemoryStore()
	backing.FailWrites = errors.New("disk full")
	s := newTestStore(backing, nil)

	assert.Error(t, s.Set("sk-abc", "gpt-4o"))
	_, ok := s.Get()
	assert.False(t, ok)
}

func TestCredential_Masked(t *testing.T) {
	assert.Equal(t, "********wxyz", Credential{APIKey: "sk-abcdefwxyz"}.Masked())
	assert.Equal(t, "***", Credential{APIKey: "abc"}.Masked())
}
