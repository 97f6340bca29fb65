// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the payg command line.
//
// Running payg with no subcommand opens the chat screen. The subcommands
// cover scripting and housekeeping:
//
//	payg send "What is a monad?"        stream one reply to stdout
//	payg list                           list conversations
//	payg show 2                         print a conversation
//	payg new | switch | rename | delete | clear
//	payg export --format yaml 1         export a conversation
//	payg models                         list supported models
//	payg config show | init | get | set | set-key | set-model
//
// Global flags --config, --data-dir, --backend and --log-level override the
// config file for one invocation.
package cli
