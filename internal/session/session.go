// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bensaine/payg-chatgpt/internal/cloud"
	"github.com/bensaine/payg-chatgpt/internal/credential"
	"github.com/bensaine/payg-chatgpt/internal/events"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned when the message has no text and no images.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMissingCredential is returned when no API key is available.
	ErrMissingCredential = errors.New("no API key configured")

	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("a response is already streaming")
)

// ErrorSuffix formats the in-band error annotation appended to a failed
// response. An empty buffer yields the annotation alone.
func ErrorSuffix(buffer, msg string) string {
	if buffer == "" {
		return "[Error: " + msg + "]"
	}
	return buffer + "\n\n[Error: " + msg + "]"
}

// =============================================================================
// CONFIG
// =============================================================================

// Committer persists a finished turn. storage.Store implements it.
type Committer interface {
	Append(id string, msgs ...model.Message) error
}

// Config holds configuration for a Session.
type Config struct {
	// Pacing is the minimum delay between applied fragments (0 = none).
	Pacing time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Pacing: 10 * time.Millisecond,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Request describes one exchange.
type Request struct {
	ConversationID string
	Credential     credential.Credential
	// History is the committed conversation so far, oldest first.
	History []model.Message
	// Message is the composed user message.
	Message model.Message
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	State          State
	ConversationID string
	Buffer         string
	// Pending is the user message of the in-flight request. It is not part
	// of the conversation until the response is committed.
	Pending *model.Message
}

// Session streams one response at a time.
type Session struct {
	backend cloud.Backend
	store   Committer
	cfg     Config

	mu      sync.Mutex
	state   State
	convID  string
	pending *model.Message
	buffer  strings.Builder
	cancel  context.CancelFunc
	killed  *atomic.Bool
	done    chan struct{}

	pubMu sync.Mutex
	sinks []events.Sink
}

// New creates an idle Session.
func New(backend cloud.Backend, store Committer, cfg Config) *Session {
	done := make(chan struct{})
	close(done)
	return &Session{
		backend: backend,
		store:   store,
		cfg:     cfg,
		done:    done,
		killed:  &atomic.Bool{},
	}
}

// WithSink adds a sink for session events.
func (s *Session) WithSink(sink events.Sink) *Session {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.sinks = append(s.sinks, sink)
	return s
}

// Start submits the request and returns once the consuming goroutine is
// running. The user message and the response are committed together when
// the stream ends.
func (s *Session) Start(ctx context.Context, req Request) error {
	if req.Message.IsEmpty() {
		return ErrEmptyMessage
	}
	if req.Credential.APIKey == "" {
		return ErrMissingCredential
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	pending := req.Message.Clone()
	killed := &atomic.Bool{}
	done := make(chan struct{})

	s.state = StateSending
	s.convID = req.ConversationID
	s.pending = &pending
	s.buffer.Reset()
	s.cancel = cancel
	s.killed = killed
	s.done = done
	s.mu.Unlock()

	messages := make([]model.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		messages = append(messages, m.Clone())
	}
	messages = append(messages, pending.Clone())

	log.Debug().
		Str("conversation", req.ConversationID).
		Str("model", req.Credential.Model).
		Int("history", len(req.History)).
		Msg("starting response stream")

	r := &run{
		s:       s,
		ctx:     ctx,
		cancel:  cancel,
		killed:  killed,
		done:    done,
		convID:  req.ConversationID,
		pending: pending,
		request: cloud.Request{
			APIKey:   req.Credential.APIKey,
			Model:    req.Credential.Model,
			Messages: messages,
		},
	}
	go r.consume()
	return nil
}

// Abandon stops the in-flight request. The live buffer is discarded,
// nothing is committed, an interrupt event is published and the session is
// Idle when Abandon returns. It reports whether there was anything to stop.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	if !s.state.InFlight() {
		s.mu.Unlock()
		return false
	}
	s.killed.Store(true)
	s.cancel()

	convID := s.convID
	discarded := s.buffer.String()
	s.resetLocked()
	s.mu.Unlock()

	log.Debug().
		Str("conversation", convID).
		Int("discarded", len(discarded)).
		Msg("response stream abandoned")

	s.publishAlways(events.Event{
		Type:           events.EventTypeInterrupt,
		ConversationID: convID,
		Buffer:         discarded,
	})
	return true
}

// Snapshot returns the current state, buffer and pending message.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:          s.state,
		ConversationID: s.convID,
		Buffer:         s.buffer.String(),
	}
	if s.pending != nil {
		p := s.pending.Clone()
		snap.Pending = &p
	}
	return snap
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffer returns the live response text.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.String()
}

// ConversationID returns the conversation of the in-flight request, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.InFlight() {
		return ""
	}
	return s.convID
}

// Done returns a channel closed when the most recent request has finished,
// including its commit and final event.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the most recent request has finished.
func (s *Session) Wait() {
	<-s.Done()
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.convID = ""
	s.pending = nil
	s.buffer.Reset()
}

// publish delivers e unless the request has been abandoned.
func (s *Session) publish(killed *atomic.Bool, e events.Event) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if killed.Load() {
		return
	}
	s.deliverLocked(e)
}

func (s *Session) publishAlways(e events.Event) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.deliverLocked(e)
}

func (s *Session) deliverLocked(e events.Event) {
	e.Time = time.Now()
	for _, sink := range s.sinks {
		if err := sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Object("event", e).Msg("event sink failed")
		}
	}
}

// =============================================================================
// STREAM CONSUMPTION
// =============================================================================

// run is the state of one request's consuming goroutine.
type run struct {
	s       *Session
	ctx     context.Context
	cancel  context.CancelFunc
	killed  *atomic.Bool
	done    chan struct{}
	convID  string
	pending model.Message
	request cloud.Request
}

func (r *run) abandoned() bool {
	return r.killed.Load() || r.ctx.Err() != nil
}

func (r *run) consume() {
	defer close(r.done)
	defer r.cancel()

	// Abandoned before the goroutine got going: no request is sent.
	if r.abandoned() {
		r.interrupted()
		return
	}

	r.s.publish(r.killed, events.Event{Type: events.EventTypeStart, ConversationID: r.convID})

	stream, err := r.s.backend.Stream(r.ctx, r.request)
	if err != nil {
		r.finish(err)
		return
	}
	defer stream.Close()

	var limiter *rate.Limiter
	if r.s.cfg.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(r.s.cfg.Pacing), 1)
	}

	for {
		if r.abandoned() {
			r.interrupted()
			return
		}

		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			r.finish(nil)
			return
		}
		if err != nil {
			r.finish(err)
			return
		}

		if frag.Delta != "" && limiter != nil {
			if err := limiter.Wait(r.ctx); err != nil {
				r.interrupted()
				return
			}
		}

		buffer, ok := r.apply(frag.Delta)
		if !ok {
			r.interrupted()
			return
		}
		if frag.Delta != "" {
			r.s.publish(r.killed, events.Event{
				Type:           events.EventTypePartial,
				ConversationID: r.convID,
				Delta:          frag.Delta,
				Buffer:         buffer,
			})
		}
	}
}

// apply appends delta to the live buffer, moving to Streaming on the first
// fragment. It reports false when the request was abandoned.
func (r *run) apply(delta string) (string, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.killed.Load() {
		return "", false
	}
	if r.s.state == StateSending {
		r.s.state = StateStreaming
	}
	r.s.buffer.WriteString(delta)
	return r.s.buffer.String(), true
}

func (r *run) interrupted() {
	// Abandon has already reset the session and published the interrupt.
	if r.killed.Load() {
		return
	}

	// The caller's context ended without Abandon.
	r.s.mu.Lock()
	if r.killed.Load() {
		r.s.mu.Unlock()
		return
	}
	r.killed.Store(true)
	discarded := r.s.buffer.String()
	r.s.resetLocked()
	r.s.mu.Unlock()

	log.Debug().Str("conversation", r.convID).Msg("response stream cancelled by context")
	r.s.publishAlways(events.Event{
		Type:           events.EventTypeInterrupt,
		ConversationID: r.convID,
		Buffer:         discarded,
	})
}

// finish commits the turn. A nil err is a clean end of stream; anything
// else is committed with an error annotation.
func (r *run) finish(streamErr error) {
	if streamErr != nil && r.abandoned() {
		r.interrupted()
		return
	}

	r.s.mu.Lock()
	if r.killed.Load() {
		r.s.mu.Unlock()
		return
	}
	buffer := r.s.buffer.String()
	content := buffer
	eventType := events.EventTypeFinal
	errText := ""
	if streamErr == nil {
		r.s.state = StateCommitted
	} else {
		errText = cloud.Describe(streamErr)
		content = ErrorSuffix(buffer, errText)
		eventType = events.EventTypeError
		r.s.state = StateAborted
	}
	r.s.mu.Unlock()

	assistant := model.NewAssistantMessage(content)
	commitErr := r.s.store.Append(r.convID, r.pending, assistant)

	r.s.mu.Lock()
	r.s.resetLocked()
	r.s.mu.Unlock()

	if commitErr != nil {
		log.Error().Err(commitErr).Str("conversation", r.convID).Msg("failed to commit response")
		r.s.publishAlways(events.Event{
			Type:           events.EventTypeError,
			ConversationID: r.convID,
			Buffer:         buffer,
			Error:          "failed to save response: " + commitErr.Error(),
		})
		return
	}

	if streamErr != nil {
		log.Warn().Err(streamErr).Str("conversation", r.convID).Msg("response stream failed")
	} else {
		log.Debug().Str("conversation", r.convID).Int("length", len(buffer)).Msg("response committed")
	}

	r.s.publishAlways(events.Event{
		Type:           eventType,
		ConversationID: r.convID,
		Buffer:         buffer,
		Error:          errText,
		Message:        &assistant,
	})
}
