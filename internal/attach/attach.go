// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach stages images for the next outgoing message.
//
// Images are read and encoded as data URLs in the background; an image
// joins the staged list when its encoding finishes, so the list is in
// completion order unless Options.OrderBySubmission is set. Non-image input
// is ignored.
package attach

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

// sniffLen is how much http.DetectContentType looks at.
const sniffLen = 512

// ErrTooLarge is reported by Wait for an image over Options.MaxBytes.
var ErrTooLarge = errors.New("image exceeds size limit")

// Options configures a Stager.
type Options struct {
	// OrderBySubmission drains images in the order they were added rather
	// than the order their encodings finished.
	OrderBySubmission bool
	// MaxBytes rejects larger images (0 = no limit).
	MaxBytes int64
}

type staged struct {
	ref model.ImageRef
	seq uint64
}

// Stager holds images staged for the next message.
type Stager struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	items   []staged
	pending int
	seq     uint64
	group   *errgroup.Group

	obsMu     sync.Mutex
	observers map[int]func([]model.ImageRef)
	nextObs   int
}

// NewStager creates an empty Stager.
func NewStager(opts Options) *Stager {
	return &Stager{
		opts:      opts,
		now:       time.Now,
		group:     newGroup(),
		observers: make(map[int]func([]model.ImageRef)),
	}
}

func newGroup() *errgroup.Group {
	return &errgroup.Group{}
}

// Add stages the image read from r under name. mimeType is the declared
// type; when empty the type is sniffed from the content. Anything that is
// not image/* is ignored and Add reports false. When r is an io.Closer it is
// closed once read.
func (s *Stager) Add(name, mimeType string, r io.Reader) bool {
	br := bufio.NewReaderSize(r, sniffLen)
	kind := mediaType(mimeType)
	if kind == "" {
		head, _ := br.Peek(sniffLen)
		kind = mediaType(http.DetectContentType(head))
	}
	if !strings.HasPrefix(kind, "image/") {
		closeReader(r)
		log.Debug().Str("name", name).Str("type", mimeType).Msg("ignoring non-image attachment")
		return false
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending++
	// Registered under the lock so Wait never races a new decode.
	s.group.Go(func() error {
		defer closeReader(r)
		dataURL, err := encode(kind, br, s.opts.MaxBytes)

		s.mu.Lock()
		s.pending--
		if err == nil {
			s.items = append(s.items, staged{ref: model.ImageRef{Name: name, DataURL: dataURL}, seq: seq})
		}
		s.mu.Unlock()
		s.notify()

		if err != nil {
			log.Warn().Err(err).Str("name", name).Msg("failed to stage image")
			return errors.Wrapf(err, "failed to stage %s", name)
		}
		return nil
	})
	s.mu.Unlock()
	s.notify()
	return true
}

// AddFile stages the image at path. The type comes from the extension,
// falling back to sniffing.
func (s *Stager) AddFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "failed to open image")
	}
	return s.Add(filepath.Base(path), mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), f), nil
}

// AddPaste stages pasted image data, named pasted-image-<unix ms>.png.
func (s *Stager) AddPaste(mimeType string, data []byte) bool {
	name := fmt.Sprintf("pasted-image-%d.png", s.now().UnixMilli())
	return s.Add(name, mimeType, bytes.NewReader(data))
}

// Remove drops the staged image at index. It reports false for an index
// out of range.
func (s *Stager) Remove(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items[:index:index], s.items[index+1:]...)
	s.mu.Unlock()
	s.notify()
	return true
}

// Items returns the staged images in drain order.
func (s *Stager) Items() []model.ImageRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refsLocked()
}

// Len returns the number of staged images.
func (s *Stager) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Pending returns how many images are still being read.
func (s *Stager) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Wait blocks until every image added so far has been read, returning the
// first failure among them.
func (s *Stager) Wait() error {
	s.mu.Lock()
	g := s.group
	s.group = newGroup()
	s.mu.Unlock()
	return g.Wait()
}

// DrainForSend returns the staged images and empties the list. Images still
// being read are not included; they stay staged for the next message.
func (s *Stager) DrainForSend() []model.ImageRef {
	s.mu.Lock()
	refs := s.refsLocked()
	s.items = nil
	s.mu.Unlock()
	if len(refs) > 0 {
		s.notify()
	}
	return refs
}

// Clear drops every staged image.
func (s *Stager) Clear() {
	s.DrainForSend()
}

// Subscribe registers fn to receive the staged list after every change.
func (s *Stager) Subscribe(fn func([]model.ImageRef)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Stager) notify() {
	items := s.Items()

	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func([]model.ImageRef), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

func (s *Stager) refsLocked() []model.ImageRef {
	items := make([]staged, len(s.items))
	copy(items, s.items)
	if s.opts.OrderBySubmission {
		sort.SliceStable(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	}
	refs := make([]model.ImageRef, len(items))
	for i, it := range items {
		refs[i] = it.ref
	}
	return refs
}

// =============================================================================
// ENCODING
// =============================================================================

// mediaType returns the lower-cased media type without parameters.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func encode(kind string, r io.Reader, maxBytes int64) (string, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to read image")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", errors.Wrapf(ErrTooLarge, "%d bytes", maxBytes)
	}
	return DataURL(kind, data), nil
}

// DataURL returns data:<mime>;base64,<payload>.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
