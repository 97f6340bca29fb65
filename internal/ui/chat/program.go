// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	core "github.com/bensaine/payg-chatgpt/internal/chat"
	"github.com/bensaine/payg-chatgpt/internal/events"
)

// bridge forwards session events and store changes to the program without
// ever blocking the publisher. Redraws are coalesced since every frame reads
// a fresh View anyway.
type bridge struct {
	refresh chan struct{}
	status  chan statusMsg
}

func newBridge() *bridge {
	return &bridge{
		refresh: make(chan struct{}, 1),
		status:  make(chan statusMsg, 16),
	}
}

// PublishEvent implements events.Sink.
func (b *bridge) PublishEvent(e events.Event) error {
	if e.Type == events.EventTypeError {
		text := "Request failed: " + e.Error
		if e.Message == nil {
			// Nothing was committed.
			text = e.Error
		}
		select {
		case b.status <- statusMsg{text: text, err: true}:
		default:
		}
	}
	b.poke()
	return nil
}

func (b *bridge) poke() {
	select {
	case b.refresh <- struct{}{}:
	default:
	}
}

func (b *bridge) forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.refresh:
			p.Send(refreshMsg{})
		case s := <-b.status:
			p.Send(s)
		}
	}
}

// Run shows the chat screen until the user quits or ctx ends. An in-flight
// response is abandoned on the way out.
func Run(ctx context.Context, ctrl *core.Controller, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, ctrl, opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	b := newBridge()
	ctrl.WithSink(b)
	unsubscribe := ctrl.OnChange(b.poke)
	defer unsubscribe()
	go b.forward(ctx, p)

	_, err := p.Run()
	if ctrl.Abandon() {
		log.Debug().Msg("abandoned response on exit")
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "chat screen failed")
}
