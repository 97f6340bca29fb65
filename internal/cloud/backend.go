// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

// Request is one streamed completion call.
type Request struct {
	APIKey   string
	Model    string
	Messages []model.Message
}

// Fragment is one incremental piece of the response.
type Fragment struct {
	// Delta is the text to append. It may be empty, e.g. for the role-only
	// first chunk or the final chunk carrying the finish reason.
	Delta string
	// FinishReason is set on the last fragment when the service reports it.
	FinishReason string
}

// Stream yields fragments in arrival order. Recv returns io.EOF once the
// response is complete.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}

// Backend starts streamed completions. Cancelling ctx aborts the request
// and unblocks a pending Recv.
type Backend interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
