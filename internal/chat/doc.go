// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat wires the credential store, conversation store, message
// log, attachment staging and streaming session into the operations a
// presentation layer calls.
//
// # Key Types
//
//   - Controller: send, navigate, rename, delete, clear and abandon
//   - View: everything a renderer needs, read in one call
//
// # Usage
//
//	ctrl := chat.New(creds, store, backend, chat.Options{
//	    Session: session.DefaultConfig(),
//	})
//	defer ctrl.Close()
//
//	if err := ctrl.Send(ctx, "Hello!"); err != nil {
//	    return err
//	}
//	ctrl.Wait()
//	for _, m := range ctrl.View().Messages {
//	    fmt.Println(m.Role, m.Text())
//	}
//
// Switching, creating, deleting or clearing the conversation a response is
// streaming into abandons that response first; nothing from it is kept.
package chat
