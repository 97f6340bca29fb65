// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/util"
)

// ErrUnsupportedFormat is returned by ForFormat for unknown names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export writes conv to w in the target format.
	Export(w io.Writer, conv *model.Conversation) error

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds front matter and a session section.
	IncludeMetadata bool

	// IncludeImages embeds image data URLs. Otherwise images are listed by
	// name only.
	IncludeImages bool

	// Model is recorded in the metadata when set.
	Model string

	// Now overrides the export timestamp. Used by tests.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Formats lists the names ForFormat accepts.
func Formats() []string {
	return []string{"markdown", "json", "yaml"}
}

// ForFormat returns the exporter for a format name or file extension.
func ForFormat(name string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "yaml", "yml":
		return NewYAMLExporter(opts), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", name)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToBytes exports conv into memory.
func ToBytes(conv *model.Conversation, exporter Exporter) ([]byte, error) {
	var buf bytes.Buffer
	if err := exporter.Export(&buf, conv); err != nil {
		return nil, errors.Wrap(err, "export failed")
	}
	return buf.Bytes(), nil
}

// ToFile exports conv into dir and returns the written path. The file is
// named after the conversation title and the current time.
func ToFile(conv *model.Conversation, exporter Exporter, dir string) (string, error) {
	content, err := ToBytes(conv, exporter)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.Title),
		time.Now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrap(err, "write file")
	}
	return path, nil
}

func validate(conv *model.Conversation) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	if conv.CreatedAt.IsZero() {
		return errors.New("conversation has invalid creation timestamp")
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var filenameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
	" ", "_", "\t", "_", "\n", "_", "\r", "_",
)

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(util.Ellipsize(s, 50))
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '-'
		}
		return r
	}, s)
	if s == "" {
		return "conversation"
	}
	return s
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
