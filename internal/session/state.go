// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// State is the streaming session state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCommitted
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// InFlight reports whether a request is being sent or streamed.
func (s State) InFlight() bool {
	return s == StateSending || s == StateStreaming
}
