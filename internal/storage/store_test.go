// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bensaine/payg-chatgpt/internal/kv"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

func openMemory(t *testing.T) (*Store, *kv.MemoryStore) {
	t.Helper()
	backing := kv.NewMemoryStore()
	s, err := Open(backing)
	require.NoError(t, err)
	return s, backing
}

// withClock makes created timestamps strictly increasing.
func withClock(s *Store) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func mustCreate(t *testing.T, s *Store) *model.Conversation {
	t.Helper()
	c, err := s.Create()
	require.NoError(t, err)
	return c
}

// =============================================================================
// CREATE / LIST
// =============================================================================

func TestStore_CreateBecomesActive(t *testing.T) {
	s, _ := openMemory(t)

	c := mustCreate(t, s)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.DefaultTitle, c.Title)
	assert.Empty(t, c.Messages)
	assert.Equal(t, c.ID, s.ActiveID())

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, c, active)
}

func TestStore_IDsAreUnique(t *testing.T) {
	s, _ := openMemory(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		c := mustCreate(t, s)
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
	assert.Equal(t, 200, s.Len())
}

func TestStore_CreateRetriesCollidingID(t *testing.T) {
	s, _ := openMemory(t)
	ids := []string{"a", "a", "b"}
	s.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	assert.Equal(t, "a", mustCreate(t, s).ID)
	assert.Equal(t, "b", mustCreate(t, s).ID)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s, _ := openMemory(t)
	withClock(s)

	a := mustCreate(t, s)
	b := mustCreate(t, s)
	c := mustCreate(t, s)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.True(t, list[0].Active)
	assert.False(t, list[1].Active)
}

// =============================================================================
// APPEND / TITLES
// =============================================================================

func TestStore_AppendIsAppendOnly(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)

	var want []model.Message
	for i := 0; i < 5; i++ {
		m := model.NewUserMessage(fmt.Sprintf("message %d", i), nil)
		want = append(want, m)
		require.NoError(t, s.Append(c.ID, m))

		got, ok := s.Get(c.ID)
		require.True(t, ok)
		// Every earlier message is still in place.
		assert.Equal(t, want, got.Messages)
	}
}

func TestStore_AppendDerivesTitle(t *testing.T) {
	s, _ := openMemory(t)

	long := mustCreate(t, s)
	require.NoError(t, s.Append(long.ID, model.NewUserMessage("Explain recursion in programming languages please", nil)))
	got, _ := s.Get(long.ID)
	assert.Equal(t, "Explain recursion in programmi...", got.Title)

	short := mustCreate(t, s)
	require.NoError(t, s.Append(short.ID, model.NewUserMessage("hi", nil)))
	got, _ = s.Get(short.ID)
	assert.Equal(t, "hi", got.Title)

	// Only the first user message names the conversation.
	require.NoError(t, s.Append(short.ID, model.NewUserMessage("something else", nil)))
	got, _ = s.Get(short.ID)
	assert.Equal(t, "hi", got.Title)
}

func TestStore_AppendImageOnlyTitle(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)

	msg := model.NewUserMessage("", []model.ImageRef{{Name: "a.png", DataURL: "data:image/png;base64,AA=="}})
	require.NoError(t, s.Append(c.ID, msg))

	got, _ := s.Get(c.ID)
	assert.Equal(t, model.ImageTitle, got.Title)
}

func TestStore_AppendAssistantDoesNotTitle(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)

	require.NoError(t, s.Append(c.ID, model.NewAssistantMessage("hello there")))
	got, _ := s.Get(c.ID)
	assert.Equal(t, model.DefaultTitle, got.Title)
}

func TestStore_AppendTurnInOneWrite(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)

	var changes []Change
	s.Subscribe(func(ch Change) { changes = append(changes, ch) })

	require.NoError(t, s.Append(c.ID,
		model.NewUserMessage("question", nil),
		model.NewAssistantMessage("answer"),
	))

	got, _ := s.Get(c.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "question", got.Title)
	assert.Len(t, changes, 1)
}

func TestStore_AppendRenamedKeepsTitle(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)

	require.NoError(t, s.Rename(c.ID, "  My topic  "))
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("first", nil)))

	got, _ := s.Get(c.ID)
	assert.Equal(t, "My topic", got.Title)
}

func TestStore_AppendRenamedToDefaultKeepsTitle(t *testing.T) {
	s, backing := openMemory(t)
	c := mustCreate(t, s)

	require.NoError(t, s.Rename(c.ID, model.DefaultTitle))
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("first question", nil)))

	got, _ := s.Get(c.ID)
	assert.Equal(t, model.DefaultTitle, got.Title)
	assert.True(t, got.Renamed)

	// The choice survives a reload.
	reopened, err := Open(backing)
	require.NoError(t, err)
	require.NoError(t, reopened.Append(c.ID, model.NewUserMessage("second", nil)))
	got, _ = reopened.Get(c.ID)
	assert.Equal(t, model.DefaultTitle, got.Title)
}

func TestStore_AppendUnknownID(t *testing.T) {
	s, _ := openMemory(t)

	err := s.Append("missing", model.NewUserMessage("x", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("x", nil)))

	got, _ := s.Get(c.ID)
	got.Messages = append(got.Messages, model.NewAssistantMessage("sneaky"))
	got.Title = "changed"

	again, _ := s.Get(c.ID)
	assert.Len(t, again.Messages, 1)
	assert.Equal(t, "x", again.Title)
}

// =============================================================================
// RENAME / SWITCH
// =============================================================================

func TestStore_RenameBlankIsNoop(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)

	require.NoError(t, s.Rename(c.ID, "   "))
	got, _ := s.Get(c.ID)
	assert.Equal(t, model.DefaultTitle, got.Title)

	assert.ErrorIs(t, s.Rename("missing", "title"), ErrConversationNotFound)
}

func TestStore_SwitchActive(t *testing.T) {
	s, _ := openMemory(t)
	a := mustCreate(t, s)
	b := mustCreate(t, s)
	require.Equal(t, b.ID, s.ActiveID())

	ok, err := s.SwitchActive(a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, a.ID, s.ActiveID())

	ok, err = s.SwitchActive("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, a.ID, s.ActiveID())
}

// =============================================================================
// DELETE / CLEAR
// =============================================================================

func TestStore_DeleteActiveReassigns(t *testing.T) {
	s, _ := openMemory(t)
	withClock(s)

	a := mustCreate(t, s)
	b := mustCreate(t, s)
	c := mustCreate(t, s)

	// Active is C; deleting it activates the newest remaining (B).
	require.NoError(t, s.Delete(c.ID))
	assert.Equal(t, b.ID, s.ActiveID())

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestStore_DeleteInactiveKeepsActive(t *testing.T) {
	s, _ := openMemory(t)
	a := mustCreate(t, s)
	b := mustCreate(t, s)

	require.NoError(t, s.Delete(a.ID))
	assert.Equal(t, b.ID, s.ActiveID())
}

func TestStore_DeleteLastClearsActive(t *testing.T) {
	s, backing := openMemory(t)
	a := mustCreate(t, s)

	require.NoError(t, s.Delete(a.ID))
	assert.Equal(t, "", s.ActiveID())
	_, ok := s.Active()
	assert.False(t, ok)

	_, ok, _ = backing.Get(kv.KeyActiveConvID)
	assert.False(t, ok)

	// Unknown id is a no-op.
	require.NoError(t, s.Delete("missing"))
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	s, _ := openMemory(t)
	c := mustCreate(t, s)
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("Title source", nil), model.NewAssistantMessage("ok")))

	require.NoError(t, s.Clear(c.ID))
	first, _ := s.Get(c.ID)
	require.NoError(t, s.Clear(c.ID))
	second, _ := s.Get(c.ID)

	assert.Empty(t, first.Messages)
	assert.Equal(t, first, second)
	assert.Equal(t, "Title source", second.Title)
	assert.Equal(t, c.ID, s.ActiveID())

	assert.ErrorIs(t, s.Clear("missing"), ErrConversationNotFound)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestStore_ReloadRoundTrip(t *testing.T) {
	for _, backend := range []string{kv.BackendFile, kv.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), backend)
			backing, err := kv.Open(backend, dir)
			require.NoError(t, err)

			s, err := Open(backing)
			require.NoError(t, err)

			a := mustCreate(t, s)
			require.NoError(t, s.Append(a.ID,
				model.NewUserMessage("describe", []model.ImageRef{{Name: "x.png", DataURL: "data:image/png;base64,iVBORw0KGgo="}}),
				model.NewAssistantMessage("A tiny PNG."),
			))
			b := mustCreate(t, s)
			require.NoError(t, s.Append(b.ID, model.NewUserMessage("hello", nil)))
			_, err = s.SwitchActive(a.ID)
			require.NoError(t, err)

			wantA, _ := s.Get(a.ID)
			wantB, _ := s.Get(b.ID)
			wantList := s.List()
			require.NoError(t, backing.Close())

			reopened, err := kv.Open(backend, dir)
			require.NoError(t, err)
			defer reopened.Close()
			loaded, err := Open(reopened)
			require.NoError(t, err)

			gotA, ok := loaded.Get(a.ID)
			require.True(t, ok)
			gotB, ok := loaded.Get(b.ID)
			require.True(t, ok)

			assert.Equal(t, wantA, gotA)
			assert.Equal(t, wantB, gotB)
			assert.Equal(t, wantList, loaded.List())
			assert.Equal(t, a.ID, loaded.ActiveID())
		})
	}
}

func TestOpen_MalformedStateIsEmpty(t *testing.T) {
	backing := kv.NewMemoryStore()
	require.NoError(t, backing.Set(kv.KeyConversations, "{definitely not an array"))
	require.NoError(t, backing.Set(kv.KeyActiveConvID, "ghost"))

	s, err := Open(backing)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.ActiveID())

	// The store is usable and overwrites the bad data.
	c := mustCreate(t, s)
	raw, _, _ := backing.Get(kv.KeyConversations)
	assert.True(t, strings.HasPrefix(raw, "["))
	assert.Contains(t, raw, c.ID)
}

func TestOpen_SortsByCreation(t *testing.T) {
	backing := kv.NewMemoryStore()
	require.NoError(t, backing.Set(kv.KeyConversations, `[
		{"id":"a","title":"A","messages":[],"createdAt":"2025-01-01T00:00:00Z"},
		{"id":"b","title":"B","messages":[],"createdAt":"2025-01-02T00:00:00Z"},
		{"id":"c","title":"C","messages":[],"createdAt":"2025-01-03T00:00:00Z"}
	]`))
	require.NoError(t, backing.Set(kv.KeyActiveConvID, "b"))

	s, err := Open(backing)
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})

	// The newest remaining conversation takes over.
	require.NoError(t, s.Delete("b"))
	assert.Equal(t, "c", s.ActiveID())
}

func TestOpen_DropsDanglingActiveID(t *testing.T) {
	backing := kv.NewMemoryStore()
	require.NoError(t, backing.Set(kv.KeyConversations, `[{"id":"1","title":"t","messages":null,"createdAt":"2025-01-01T00:00:00Z"}]`))
	require.NoError(t, backing.Set(kv.KeyActiveConvID, "2"))

	s, err := Open(backing)
	require.NoError(t, err)
	assert.Equal(t, "", s.ActiveID())

	c, ok := s.Get("1")
	require.True(t, ok)
	assert.NotNil(t, c.Messages)
}

func TestStore_PersistFailureRollsBack(t *testing.T) {
	s, backing := openMemory(t)
	c := mustCreate(t, s)
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("kept", nil)))

	notified := 0
	s.Subscribe(func(Change) { notified++ })

	backing.FailWrites = errors.New("disk full")

	assert.Error(t, s.Append(c.ID, model.NewAssistantMessage("lost")))
	assert.Error(t, s.Rename(c.ID, "new name"))
	assert.Error(t, s.Clear(c.ID))
	assert.Error(t, s.Delete(c.ID))
	_, err := s.Create()
	assert.Error(t, err)

	got, ok := s.Get(c.ID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, "kept", got.Title)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, notified)
}

// =============================================================================
// OBSERVERS
// =============================================================================

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	s, _ := openMemory(t)

	var kinds []ChangeKind
	unsubscribe := s.Subscribe(func(c Change) { kinds = append(kinds, c.Kind) })

	c := mustCreate(t, s)
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("x", nil)))
	require.NoError(t, s.Rename(c.ID, "renamed"))
	require.NoError(t, s.Clear(c.ID))
	require.NoError(t, s.Delete(c.ID))

	unsubscribe()
	unsubscribe()
	mustCreate(t, s)

	assert.Equal(t, []ChangeKind{ChangeCreated, ChangeAppended, ChangeRenamed, ChangeCleared, ChangeDeleted}, kinds)
}

func TestStore_ObserverCanReadStore(t *testing.T) {
	s, _ := openMemory(t)

	var seen int
	s.Subscribe(func(c Change) {
		conv, ok := s.Get(c.ID)
		if ok {
			seen = len(conv.Messages)
		}
	})

	c := mustCreate(t, s)
	require.NoError(t, s.Append(c.ID, model.NewUserMessage("x", nil)))
	assert.Equal(t, 1, seen)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "No conversations yet.", FormatList(nil))

	out := FormatList([]Summary{
		{ID: "1", Title: "Explain recursion in programmi...", MessageCount: 2, Active: true, CreatedAt: time.Now()},
		{ID: "2", Title: "hi", MessageCount: 0, CreatedAt: time.Now()},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "*"))
	assert.Contains(t, lines[3], "hi")
}
