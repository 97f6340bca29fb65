// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Error variables for common failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenAI API key not configured")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timed out")
)

// Describe returns the message to show for a failed request. Service errors
// yield the message the service sent; other errors their own text.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.HTTPStatusCode)
		}
		if apiErr.HTTPStatusCode != 0 {
			return fmt.Sprintf("%d %s", apiErr.HTTPStatusCode, msg)
		}
		return msg
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		status := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			return fmt.Sprintf("%d %s: %v", reqErr.HTTPStatusCode, status, reqErr.Err)
		}
		return fmt.Sprintf("%d %s", reqErr.HTTPStatusCode, status)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Error()
	}
	return err.Error()
}
