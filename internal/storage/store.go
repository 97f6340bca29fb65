// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bensaine/payg-chatgpt/internal/kv"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// ChangeKind identifies the mutation behind a Change.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeSwitched ChangeKind = "switched"
	ChangeRenamed  ChangeKind = "renamed"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeAppended ChangeKind = "appended"
	ChangeCleared  ChangeKind = "cleared"
)

// Change is delivered to observers after a mutation has been persisted.
type Change struct {
	Kind ChangeKind
	// ID is the conversation the mutation targeted.
	ID string
	// ActiveID is the active conversation after the mutation.
	ActiveID string
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary contains metadata for listing conversations.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
	Active       bool      `json:"active"`
}

// =============================================================================
// STORE
// =============================================================================

// Store owns all conversations. Mutations are serialized and applied in
// call order.
type Store struct {
	kv kv.Store

	mu       sync.Mutex
	convs    []*model.Conversation // newest first
	activeID string

	obsMu     sync.Mutex
	observers []observer
	nextObs   int

	now   func() time.Time
	newID func() (string, error)
}

type observer struct {
	id int
	fn func(Change)
}

// Open loads the conversations kept in backing. Stored data that cannot be
// decoded is logged and treated as absent.
func Open(backing kv.Store) (*Store, error) {
	s := &Store{
		kv:  backing,
		now: func() time.Time { return time.Now().UTC().Round(0) },
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}

	raw, ok, err := backing.Get(kv.KeyConversations)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read conversations")
	}
	if ok && strings.TrimSpace(raw) != "" {
		convs, err := decodeConversations(raw)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring stored conversations")
		} else {
			s.convs = convs
		}
	}

	active, _, err := backing.Get(kv.KeyActiveConvID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read active conversation")
	}
	if active != "" && s.indexOf(active) >= 0 {
		s.activeID = active
	} else if active != "" {
		log.Debug().Str("id", active).Msg("dropping active id of missing conversation")
	}

	log.Debug().
		Int("conversations", len(s.convs)).
		Str("active", s.activeID).
		Msg("conversation store loaded")

	return s, nil
}

func decodeConversations(raw string) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		return nil, errors.Wrap(ErrMalformedState, err.Error())
	}

	seen := make(map[string]bool, len(convs))
	out := convs[:0]
	for _, c := range convs {
		if c == nil || c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if c.Messages == nil {
			c.Messages = []model.Message{}
		}
		out = append(out, c)
	}
	// Another writer may have stored them in any order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// List returns summaries, most recently created first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, len(s.convs))
	for i, c := range s.convs {
		out[i] = Summary{
			ID:           c.ID,
			Title:        c.Title,
			CreatedAt:    c.CreatedAt,
			MessageCount: len(c.Messages),
			Preview:      c.Preview(60),
			Active:       c.ID == s.activeID,
		}
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (*model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return s.convs[i].Clone(), true
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (*model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(s.activeID)
	if i < 0 {
		return nil, false
	}
	return s.convs[i].Clone(), true
}

// ActiveID returns the active conversation id, or "".
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create adds an empty conversation with the default title and makes it
// active.
func (s *Store) Create() (*model.Conversation, error) {
	s.mu.Lock()

	id, err := s.uniqueIDLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	conv := model.NewConversation(id, s.now())

	next := make([]*model.Conversation, 0, len(s.convs)+1)
	next = append(next, conv)
	next = append(next, s.convs...)

	if err := s.commitLocked(next, id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := conv.Clone()
	s.mu.Unlock()

	log.Debug().Str("id", id).Msg("conversation created")
	s.notify(Change{Kind: ChangeCreated, ID: id, ActiveID: id})
	return out, nil
}

func (s *Store) uniqueIDLocked() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", errors.Wrap(err, "failed to generate conversation id")
		}
		if s.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", errors.New("failed to generate a unique conversation id")
}

// SwitchActive makes id the active conversation. It reports false, and
// changes nothing, when id is unknown.
func (s *Store) SwitchActive(id string) (bool, error) {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return false, nil
	}
	if id == s.activeID {
		s.mu.Unlock()
		return true, nil
	}
	if err := s.commitLocked(s.convs, id); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSwitched, ID: id, ActiveID: id})
	return true, nil
}

// Rename replaces the title with the trimmed title and marks the
// conversation as renamed, so later messages never retitle it. A blank title
// is ignored.
func (s *Store) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return notFound(id)
	}
	if s.convs[i].Title == title && s.convs[i].Renamed {
		s.mu.Unlock()
		return nil
	}

	next := s.replaceLocked(i, func(c *model.Conversation) {
		c.Title = title
		c.Renamed = true
	})
	if err := s.commitLocked(next, s.activeID); err != nil {
		s.mu.Unlock()
		return err
	}
	active := s.activeID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRenamed, ID: id, ActiveID: active})
	return nil
}

// Delete removes a conversation. When it was active, the most recently
// created remaining conversation becomes active, or none when the store is
// empty. Deleting an unknown id does nothing.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}

	next := make([]*model.Conversation, 0, len(s.convs)-1)
	next = append(next, s.convs[:i]...)
	next = append(next, s.convs[i+1:]...)

	active := s.activeID
	if active == id {
		active = ""
		if len(next) > 0 {
			active = next[0].ID
		}
	}

	if err := s.commitLocked(next, active); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	log.Debug().Str("id", id).Str("active", active).Msg("conversation deleted")
	s.notify(Change{Kind: ChangeDeleted, ID: id, ActiveID: active})
	return nil
}

// Append adds messages to the end of a conversation in a single write. While
// the title is still the default and the user has not renamed the
// conversation, the first user message among msgs sets it.
func (s *Store) Append(id string, msgs ...model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return notFound(id)
	}

	next := s.replaceLocked(i, func(c *model.Conversation) {
		for _, m := range msgs {
			if !c.Renamed && c.HasDefaultTitle() && m.Role == model.RoleUser {
				c.Title = model.DeriveTitle(m.Text())
			}
			c.Messages = append(c.Messages, m.Clone())
		}
	})
	if err := s.commitLocked(next, s.activeID); err != nil {
		s.mu.Unlock()
		return err
	}
	active := s.activeID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAppended, ID: id, ActiveID: active})
	return nil
}

// Clear removes every message but keeps the conversation and its title.
// Clearing an empty conversation does nothing.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return notFound(id)
	}
	if len(s.convs[i].Messages) == 0 {
		s.mu.Unlock()
		return nil
	}

	next := s.replaceLocked(i, func(c *model.Conversation) { c.Messages = []model.Message{} })
	if err := s.commitLocked(next, s.activeID); err != nil {
		s.mu.Unlock()
		return err
	}
	active := s.activeID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeCleared, ID: id, ActiveID: active})
	return nil
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers fn to be called after every persisted mutation, in
// registration order. Callbacks run on the mutating goroutine without the
// store lock held, so they may read from the store.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			defer s.obsMu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.Lock()
	fns := make([]func(Change), len(s.observers))
	for i, o := range s.observers {
		fns[i] = o.fn
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.convs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// replaceLocked returns a new slice in which conversation i is replaced by
// an edited copy. The current slice is left untouched.
func (s *Store) replaceLocked(i int, edit func(*model.Conversation)) []*model.Conversation {
	next := make([]*model.Conversation, len(s.convs))
	copy(next, s.convs)
	c := s.convs[i].Clone()
	edit(c)
	next[i] = c
	return next
}

// commitLocked persists convs and activeID, then installs them. On failure
// the in-memory state is unchanged.
func (s *Store) commitLocked(convs []*model.Conversation, activeID string) error {
	data, err := json.Marshal(convs)
	if err != nil {
		return errors.Wrap(err, "failed to encode conversations")
	}
	if convs == nil {
		data = []byte("[]")
	}

	if err := s.kv.Set(kv.KeyConversations, string(data)); err != nil {
		return errors.Wrap(err, "failed to save conversations")
	}

	if activeID != s.activeID {
		if activeID == "" {
			err = s.kv.Delete(kv.KeyActiveConvID)
		} else {
			err = s.kv.Set(kv.KeyActiveConvID, activeID)
		}
		if err != nil {
			// Put the previous collection back so disk matches memory.
			if prev, encErr := json.Marshal(s.convs); encErr == nil {
				if restoreErr := s.kv.Set(kv.KeyConversations, string(prev)); restoreErr != nil {
					log.Error().Err(restoreErr).Msg("failed to restore conversations after a failed write")
				}
			}
			return errors.Wrap(err, "failed to save active conversation")
		}
	}

	s.convs = convs
	s.activeID = activeID
	return nil
}
