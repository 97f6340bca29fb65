// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// ModelInfo describes a selectable completion model.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Vision reports whether the model accepts image_url parts
	Vision bool `json:"vision"`

	// MaxTokens is the context window size
	MaxTokens int `json:"max_tokens"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// DefaultModel is used when no valid model has been chosen.
const DefaultModel = "gpt-4o-mini"

// supported lists the selectable models in display order.
var supported = []ModelInfo{
	{ID: "gpt-5", Name: "GPT-5", Vision: true, MaxTokens: 400000, Description: "Most capable reasoning model"},
	{ID: "gpt-4o", Name: "GPT-4o", Vision: true, MaxTokens: 128000, Description: "Fast multimodal model with vision"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Vision: true, MaxTokens: 128000, Description: "Cost-effective for simple tasks"},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Vision: true, MaxTokens: 128000, Description: "Previous generation high-capability model"},
	{ID: "gpt-4", Name: "GPT-4", MaxTokens: 8192, Description: "Original GPT-4"},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", MaxTokens: 16385, Description: "Legacy fast model"},
}

// SupportedModels returns the selectable models in display order.
func SupportedModels() []ModelInfo {
	out := make([]ModelInfo, len(supported))
	copy(out, supported)
	return out
}

// SupportedModelIDs returns the ids of SupportedModels.
func SupportedModelIDs() []string {
	ids := make([]string, len(supported))
	for i, m := range supported {
		ids[i] = m.ID
	}
	return ids
}

// GetModelInfo looks up a model by id (case-insensitive).
func GetModelInfo(id string) (ModelInfo, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, m := range supported {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// IsSupportedModel reports whether id names a selectable model.
func IsSupportedModel(id string) bool {
	_, ok := GetModelInfo(id)
	return ok
}

// ContextString returns the context window in a compact form, e.g. "128K".
func (m ModelInfo) ContextString() string {
	switch {
	case m.MaxTokens >= 1000000:
		return fmt.Sprintf("%dM", m.MaxTokens/1000000)
	case m.MaxTokens >= 1000:
		return fmt.Sprintf("%dK", m.MaxTokens/1000)
	default:
		return fmt.Sprintf("%d", m.MaxTokens)
	}
}
