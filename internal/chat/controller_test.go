// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bensaine/payg-chatgpt/internal/attach"
	"github.com/bensaine/payg-chatgpt/internal/cloud/cloudtest"
	"github.com/bensaine/payg-chatgpt/internal/credential"
	"github.com/bensaine/payg-chatgpt/internal/kv"
	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/session"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

func newController(t *testing.T, withKey bool, scripts ...cloudtest.Script) (*Controller, *cloudtest.Backend) {
	t.Helper()
	t.Setenv(credential.EnvAPIKey, "")

	backing := kv.NewMemoryStore()
	creds := credential.NewStore(backing)
	if withKey {
		require.NoError(t, creds.Set("sk-test", "gpt-4o"))
	}
	store, err := storage.Open(backing)
	require.NoError(t, err)

	backend := cloudtest.New(scripts...)
	c := New(creds, store, backend, Options{Attach: attach.Options{MaxBytes: 1 << 20}})
	t.Cleanup(c.Close)
	return c, backend
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func held(deltas ...string) (cloudtest.Script, chan struct{}) {
	hold := make(chan struct{})
	s := cloudtest.Text(deltas...)
	s.Hold = hold
	return s, hold
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_RequiresCredential(t *testing.T) {
	c, backend := newController(t, false)

	assert.ErrorIs(t, c.Send(context.Background(), "hi"), ErrMissingCredential)
	assert.Empty(t, backend.Requests())
	assert.Equal(t, 0, c.Store().Len())
	assert.False(t, c.View().HasCredential)
}

func TestSend_RejectsEmptyInput(t *testing.T) {
	c, _ := newController(t, true)

	assert.ErrorIs(t, c.Send(context.Background(), "   \n"), ErrEmptyMessage)
	assert.Equal(t, 0, c.Store().Len())
}

func TestSend_CreatesConversationAndCommits(t *testing.T) {
	c, backend := newController(t, true, cloudtest.Text("Hi ", "there"))

	require.NoError(t, c.Send(context.Background(), "Hello"))
	c.Wait()

	v := c.View()
	require.Len(t, v.Conversations, 1)
	assert.Equal(t, v.Conversations[0].ID, v.ActiveID)
	assert.Equal(t, "Hello", v.ActiveTitle)
	require.Len(t, v.Messages, 2)
	assert.Equal(t, model.RoleUser, v.Messages[0].Role)
	assert.Equal(t, "Hi there", v.Messages[1].Text())
	assert.Equal(t, session.StateIdle, v.Stream.State)
	assert.Equal(t, "gpt-4o", v.Model)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sk-test", reqs[0].APIKey)
	assert.Equal(t, "gpt-4o", reqs[0].Model)
}

func TestSend_SendsHistory(t *testing.T) {
	c, backend := newController(t, true, cloudtest.Text("one"), cloudtest.Text("two"))

	require.NoError(t, c.Send(context.Background(), "first"))
	c.Wait()
	require.NoError(t, c.Send(context.Background(), "second"))
	c.Wait()

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Messages, 3)
	assert.Equal(t, "first", reqs[1].Messages[0].Text())
	assert.Equal(t, "one", reqs[1].Messages[1].Text())
	assert.Equal(t, "second", reqs[1].Messages[2].Text())
	assert.Len(t, c.View().Messages, 4)
}

func TestSend_ImageOnly(t *testing.T) {
	c, backend := newController(t, true, cloudtest.Text("a cat"))

	assert.True(t, c.Stager().AddPaste("image/png", []byte("\x89PNG\r\n\x1a\nfake")))
	require.NoError(t, c.Stager().Wait())

	require.NoError(t, c.Send(context.Background(), ""))
	c.Wait()

	assert.Equal(t, 0, c.Stager().Len())
	v := c.View()
	assert.Equal(t, model.ImageTitle, v.ActiveTitle)
	require.Len(t, v.Messages, 2)
	require.Len(t, v.Messages[0].Images, 1)

	parts := backend.Requests()[0].Messages[0].Content.Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, model.PartImageURL, parts[0].Type)
}

func TestSend_BusyKeepsStaging(t *testing.T) {
	script, hold := held("x")
	c, _ := newController(t, true, script)

	require.NoError(t, c.Send(context.Background(), "one"))
	assert.True(t, c.Stager().AddPaste("image/png", []byte("\x89PNG\r\n\x1a\n")))
	require.NoError(t, c.Stager().Wait())

	assert.ErrorIs(t, c.Send(context.Background(), "two"), ErrBusy)
	assert.Equal(t, 1, c.Stager().Len())

	close(hold)
	c.Wait()
}

func TestView_PendingMessageWhileStreaming(t *testing.T) {
	script, hold := held("par", "tial")
	c, _ := newController(t, true, script)

	require.NoError(t, c.Send(context.Background(), "question"))
	hold <- struct{}{}
	waitFor(t, func() bool { return c.View().Stream.Buffer == "par" })

	v := c.View()
	assert.True(t, v.StreamingHere())
	require.NotNil(t, v.Stream.Pending)
	assert.Equal(t, "question", v.Stream.Pending.Text())
	assert.Empty(t, v.Messages)

	close(hold)
	c.Wait()
	assert.Len(t, c.View().Messages, 2)
}

// =============================================================================
// NAVIGATION
// =============================================================================

func TestSwitchConversation_AbandonsStream(t *testing.T) {
	script, hold := held("a", "b")
	c, _ := newController(t, true, script)

	other, err := c.NewConversation()
	require.NoError(t, err)
	first, err := c.NewConversation()
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "question"))
	hold <- struct{}{}
	waitFor(t, func() bool { return c.View().Stream.Buffer == "a" })

	ok, err := c.SwitchConversation(other.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.StateIdle, c.View().Stream.State)

	c.Wait()
	conv, _ := c.Store().Get(first.ID)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, other.ID, c.View().ActiveID)
}

func TestSwitchConversation_UnknownID(t *testing.T) {
	c, _ := newController(t, true)
	conv, err := c.NewConversation()
	require.NoError(t, err)

	ok, err := c.SwitchConversation("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, conv.ID, c.View().ActiveID)
}

func TestNewConversation_AbandonsStream(t *testing.T) {
	script, hold := held("a")
	c, _ := newController(t, true, script)
	defer close(hold)

	require.NoError(t, c.Send(context.Background(), "question"))
	first := c.View().ActiveID

	_, err := c.NewConversation()
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, c.View().Stream.State)

	c.Wait()
	conv, _ := c.Store().Get(first)
	assert.Empty(t, conv.Messages)
}

func TestDeleteConversation_OtherKeepsStream(t *testing.T) {
	script, hold := held("done")
	c, _ := newController(t, true, script)

	other, err := c.NewConversation()
	require.NoError(t, err)
	_, err = c.NewConversation()
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "question"))
	require.NoError(t, c.DeleteConversation(other.ID))
	assert.True(t, c.View().Stream.State.InFlight())

	close(hold)
	c.Wait()
	assert.Len(t, c.View().Messages, 2)
}

func TestDeleteConversation_StreamingTargetAbandons(t *testing.T) {
	script, hold := held("x")
	c, _ := newController(t, true, script)
	defer close(hold)

	require.NoError(t, c.Send(context.Background(), "question"))
	id := c.View().ActiveID

	require.NoError(t, c.DeleteConversation(id))
	assert.Equal(t, session.StateIdle, c.View().Stream.State)
	c.Wait()

	_, ok := c.Store().Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Store().Len())
}

func TestClearConversation_StreamingTargetAbandons(t *testing.T) {
	script, hold := held("x")
	c, _ := newController(t, true, cloudtest.Text("first"), script)
	defer close(hold)

	require.NoError(t, c.Send(context.Background(), "one"))
	c.Wait()
	require.NoError(t, c.Send(context.Background(), "two"))

	require.NoError(t, c.ClearConversation(c.View().ActiveID))
	c.Wait()

	v := c.View()
	assert.Equal(t, session.StateIdle, v.Stream.State)
	assert.Empty(t, v.Messages)
}

func TestRenameConversation(t *testing.T) {
	c, _ := newController(t, true)
	conv, err := c.NewConversation()
	require.NoError(t, err)

	require.NoError(t, c.RenameConversation(conv.ID, "  Plans  "))
	assert.Equal(t, "Plans", c.View().ActiveTitle)

	require.NoError(t, c.RenameConversation(conv.ID, "  "))
	assert.Equal(t, "Plans", c.View().ActiveTitle)
}

// =============================================================================
// CREDENTIALS
// =============================================================================

func TestSaveCredential(t *testing.T) {
	c, _ := newController(t, false)

	require.NoError(t, c.SaveCredential("sk-new", "gpt-4"))
	v := c.View()
	assert.True(t, v.HasCredential)
	assert.Equal(t, "gpt-4", v.Model)

	require.NoError(t, c.SetModel("gpt-4o-mini"))
	assert.Equal(t, "gpt-4o-mini", c.View().Model)

	assert.ErrorIs(t, c.SetModel("nope"), credential.ErrUnsupportedModel)
}

func TestOnChange(t *testing.T) {
	c, _ := newController(t, true)

	calls := make(chan struct{}, 8)
	unsubscribe := c.OnChange(func() { calls <- struct{}{} })

	_, err := c.NewConversation()
	require.NoError(t, err)
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	unsubscribe()
	_, err = c.NewConversation()
	require.NoError(t, err)
	assert.Len(t, calls, 0)
}
