// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	lvl, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	_, err = ParseLevel("shouty")
	assert.Error(t, err)
}

func TestInit_JSONToStderr(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: "debug", Format: "json", Stderr: &buf}))

	log.Debug().Str("conversation", "abc").Msg("hello")
	assert.Contains(t, buf.String(), `"conversation":"abc"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestInit_QuietWritesFileOnly(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "payg.log")
	require.NoError(t, Init(Options{Level: "info", File: path, Quiet: true, Stderr: &buf}))

	log.Info().Msg("to the file")
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to the file")
}
