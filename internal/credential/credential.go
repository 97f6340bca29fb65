// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credential persists the API key and the preferred model.
package credential

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bensaine/payg-chatgpt/internal/kv"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

// EnvAPIKey is consulted when no key has been saved.
const EnvAPIKey = "OPENAI_API_KEY"

// ErrUnsupportedModel is returned for a model outside model.SupportedModels.
var ErrUnsupportedModel = errors.New("unsupported model")

// Credential is the bearer key and the model to request.
type Credential struct {
	APIKey string
	Model  string
}

// Masked returns the key with all but the last four characters hidden.
func (c Credential) Masked() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", 8) + c.APIKey[len(c.APIKey)-4:]
}

// Store caches the credential loaded from a kv.Store.
type Store struct {
	kv     kv.Store
	getenv func(string) string

	once   sync.Once
	mu     sync.RWMutex
	apiKey string
	model  string
}

// NewStore returns a Store over backing. Nothing is read until first use.
func NewStore(backing kv.Store) *Store {
	return &Store{kv: backing, getenv: os.Getenv}
}

func (s *Store) load() {
	s.once.Do(func() {
		key, _, err := s.kv.Get(kv.KeyAPIKey)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read saved API key")
		}
		m, _, err := s.kv.Get(kv.KeyModel)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read preferred model")
		}
		if m != "" && !model.IsSupportedModel(m) {
			log.Warn().Str("model", m).Msg("ignoring unsupported saved model")
			m = ""
		}

		s.mu.Lock()
		s.apiKey = key
		s.model = m
		s.mu.Unlock()
	})
}

// Get returns the credential, or false when there is no saved key and no
// OPENAI_API_KEY in the environment.
func (s *Store) Get() (Credential, bool) {
	s.load()
	s.mu.RLock()
	key, m := s.apiKey, s.model
	s.mu.RUnlock()

	if key == "" {
		key = strings.TrimSpace(s.getenv(EnvAPIKey))
	}
	if m == "" {
		m = model.DefaultModel
	}
	if key == "" {
		return Credential{Model: m}, false
	}
	return Credential{APIKey: key, Model: m}, true
}

// Model returns the selected model, falling back to model.DefaultModel.
func (s *Store) Model() string {
	c, _ := s.Get()
	return c.Model
}

// Set persists both values. The key is not validated.
func (s *Store) Set(apiKey, modelID string) error {
	s.load()
	info, ok := model.GetModelInfo(modelID)
	if !ok {
		return errors.Wrapf(ErrUnsupportedModel, "%q", modelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(kv.KeyAPIKey, apiKey); err != nil {
		return errors.Wrap(err, "failed to save API key")
	}
	s.apiKey = apiKey
	if err := s.kv.Set(kv.KeyModel, info.ID); err != nil {
		return errors.Wrap(err, "failed to save model")
	}
	s.model = info.ID
	return nil
}

// SetModel persists only the model selection.
func (s *Store) SetModel(modelID string) error {
	s.load()
	info, ok := model.GetModelInfo(modelID)
	if !ok {
		return errors.Wrapf(ErrUnsupportedModel, "%q", modelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(kv.KeyModel, info.ID); err != nil {
		return errors.Wrap(err, "failed to save model")
	}
	s.model = info.ID
	return nil
}
