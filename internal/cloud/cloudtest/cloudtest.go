// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloudtest provides a scripted cloud.Backend for tests.
package cloudtest

import (
	"context"
	"io"
	"sync"

	"github.com/bensaine/payg-chatgpt/internal/cloud"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

// Step is one scripted Recv result. A non-nil Err ends the stream.
type Step struct {
	Delta string
	Err   error
}

// Script describes the response to one request.
type Script struct {
	// StartErr makes Stream itself fail.
	StartErr error
	// Steps are returned in order, followed by io.EOF.
	Steps []Step
	// Hold, when set, makes every Recv wait for a value (or close) on it,
	// or for the request context to end.
	Hold chan struct{}
}

// Text returns a script streaming each delta in turn.
func Text(deltas ...string) Script {
	steps := make([]Step, len(deltas))
	for i, d := range deltas {
		steps[i] = Step{Delta: d}
	}
	return Script{Steps: steps}
}

// Backend replays queued scripts, one per request. With an empty queue a
// request gets an immediately finished stream.
type Backend struct {
	mu       sync.Mutex
	scripts  []Script
	requests []cloud.Request
}

// New returns a Backend with the given scripts queued.
func New(scripts ...Script) *Backend {
	return &Backend{scripts: scripts}
}

// Push queues more scripts.
func (b *Backend) Push(scripts ...Script) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts = append(b.scripts, scripts...)
}

// Requests returns the requests received so far.
func (b *Backend) Requests() []cloud.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]cloud.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Stream implements cloud.Backend.
func (b *Backend) Stream(ctx context.Context, req cloud.Request) (cloud.Stream, error) {
	b.mu.Lock()
	msgs := make([]model.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m.Clone()
	}
	req.Messages = msgs
	b.requests = append(b.requests, req)

	var script Script
	if len(b.scripts) > 0 {
		script = b.scripts[0]
		b.scripts = b.scripts[1:]
	}
	b.mu.Unlock()

	if script.StartErr != nil {
		return nil, script.StartErr
	}
	return &stream{ctx: ctx, script: script}, nil
}

type stream struct {
	ctx    context.Context
	script Script
	next   int
}

func (s *stream) Recv() (cloud.Fragment, error) {
	if s.script.Hold != nil {
		select {
		case <-s.script.Hold:
		case <-s.ctx.Done():
			return cloud.Fragment{}, s.ctx.Err()
		}
	}
	if err := s.ctx.Err(); err != nil {
		return cloud.Fragment{}, err
	}
	if s.next >= len(s.script.Steps) {
		return cloud.Fragment{}, io.EOF
	}
	step := s.script.Steps[s.next]
	s.next++
	if step.Err != nil {
		return cloud.Fragment{}, step.Err
	}
	return cloud.Fragment{Delta: step.Delta}, nil
}

func (s *stream) Close() error { return nil }

var _ cloud.Backend = (*Backend)(nil)
