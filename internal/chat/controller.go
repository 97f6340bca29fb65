// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bensaine/payg-chatgpt/internal/attach"
	"github.com/bensaine/payg-chatgpt/internal/cloud"
	"github.com/bensaine/payg-chatgpt/internal/credential"
	"github.com/bensaine/payg-chatgpt/internal/events"
	"github.com/bensaine/payg-chatgpt/internal/messagelog"
	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/session"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

// Re-exported so callers need not import session for the common checks.
var (
	ErrEmptyMessage      = session.ErrEmptyMessage
	ErrMissingCredential = session.ErrMissingCredential
	ErrBusy              = session.ErrBusy
)

// ErrInterrupted reports a response that was abandoned before it finished.
var ErrInterrupted = errors.New("response interrupted")

// Options configures a Controller.
type Options struct {
	Session session.Config
	Attach  attach.Options
}

// Controller is the single entry point for presentation code.
type Controller struct {
	creds   *credential.Store
	store   *storage.Store
	log     *messagelog.Log
	stager  *attach.Stager
	session *session.Session
}

// New builds a Controller over the given stores and backend.
func New(creds *credential.Store, store *storage.Store, backend cloud.Backend, opts Options) *Controller {
	return &Controller{
		creds:   creds,
		store:   store,
		log:     messagelog.New(store),
		stager:  attach.NewStager(opts.Attach),
		session: session.New(backend, store, opts.Session),
	}
}

// WithSink forwards session events to sink.
func (c *Controller) WithSink(sink events.Sink) *Controller {
	c.session.WithSink(sink)
	return c
}

// Store returns the conversation store.
func (c *Controller) Store() *storage.Store { return c.store }

// Credentials returns the credential store.
func (c *Controller) Credentials() *credential.Store { return c.creds }

// Stager returns the attachment staging area.
func (c *Controller) Stager() *attach.Stager { return c.stager }

// CanSend reports whether Send would accept input right now.
func (c *Controller) CanSend(input string) error {
	if _, ok := c.creds.Get(); !ok {
		return ErrMissingCredential
	}
	if strings.TrimSpace(input) == "" && c.stager.Len() == 0 {
		return ErrEmptyMessage
	}
	if c.session.State() != session.StateIdle {
		return ErrBusy
	}
	return nil
}

// Send composes a user message from input and the staged images and starts
// streaming the response. A conversation is created when none is active.
func (c *Controller) Send(ctx context.Context, input string) error {
	if err := c.CanSend(input); err != nil {
		return err
	}
	cred, _ := c.creds.Get()

	convID := c.store.ActiveID()
	if convID == "" {
		conv, err := c.store.Create()
		if err != nil {
			return errors.Wrap(err, "failed to create conversation")
		}
		convID = conv.ID
	}
	conv, ok := c.store.Get(convID)
	if !ok {
		return errors.Wrap(storage.ErrConversationNotFound, convID)
	}

	images := c.stager.DrainForSend()
	msg := model.NewUserMessage(input, images)

	err := c.session.Start(ctx, session.Request{
		ConversationID: convID,
		Credential:     cred,
		History:        conv.Messages,
		Message:        msg,
	})
	if err != nil {
		log.Warn().Err(err).Msg("send rejected")
		return err
	}
	return nil
}

// Abandon stops the in-flight response without keeping any of it.
func (c *Controller) Abandon() bool {
	return c.session.Abandon()
}

// Wait blocks until the most recent response has been committed or
// abandoned.
func (c *Controller) Wait() {
	c.session.Wait()
}

// abandonIfStreaming abandons the in-flight response when it targets id, or
// any in-flight response when id is "".
func (c *Controller) abandonIfStreaming(id string) {
	streaming := c.session.ConversationID()
	if streaming == "" {
		return
	}
	if id == "" || id == streaming {
		c.session.Abandon()
	}
}

// NewConversation creates and activates an empty conversation.
func (c *Controller) NewConversation() (*model.Conversation, error) {
	c.abandonIfStreaming("")
	return c.store.Create()
}

// SwitchConversation activates id. Unknown ids are ignored and report false.
func (c *Controller) SwitchConversation(id string) (bool, error) {
	if _, ok := c.store.Get(id); !ok {
		return false, nil
	}
	if id != c.store.ActiveID() {
		c.abandonIfStreaming("")
	}
	return c.store.SwitchActive(id)
}

// RenameConversation sets a title. Blank titles are ignored.
func (c *Controller) RenameConversation(id, title string) error {
	return c.store.Rename(id, title)
}

// DeleteConversation removes id.
func (c *Controller) DeleteConversation(id string) error {
	c.abandonIfStreaming(id)
	return c.store.Delete(id)
}

// ClearConversation removes every message of id.
func (c *Controller) ClearConversation(id string) error {
	c.abandonIfStreaming(id)
	return c.store.Clear(id)
}

// SaveCredential stores the API key and model.
func (c *Controller) SaveCredential(apiKey, modelID string) error {
	return c.creds.Set(apiKey, modelID)
}

// SetModel stores the model selection.
func (c *Controller) SetModel(modelID string) error {
	return c.creds.SetModel(modelID)
}

// OnChange calls fn after any conversation or staging change.
func (c *Controller) OnChange(fn func()) (unsubscribe func()) {
	unStore := c.store.Subscribe(func(storage.Change) { fn() })
	unStage := c.stager.Subscribe(func([]model.ImageRef) { fn() })
	return func() {
		unStore()
		unStage()
	}
}

// Close abandons any in-flight response and releases subscriptions.
func (c *Controller) Close() {
	c.session.Abandon()
	c.session.Wait()
	c.log.Close()
}
