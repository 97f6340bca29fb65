// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

// document is the flattened shape written by the YAML exporter and used
// for Markdown front matter.
type document struct {
	ID        string       `yaml:"id"`
	Title     string       `yaml:"title"`
	Model     string       `yaml:"model,omitempty"`
	CreatedAt time.Time    `yaml:"created"`
	Exported  time.Time    `yaml:"exported"`
	Count     int          `yaml:"messages_count"`
	Messages  []docMessage `yaml:"messages,omitempty"`
}

type docMessage struct {
	Role    string     `yaml:"role"`
	Content string     `yaml:"content"`
	Images  []docImage `yaml:"images,omitempty"`
}

type docImage struct {
	Name    string `yaml:"name"`
	DataURL string `yaml:"data_url,omitempty"`
}

func newDocument(conv *model.Conversation, opts *Options, withMessages bool) document {
	doc := document{
		ID:        conv.ID,
		Title:     conv.Title,
		Model:     opts.Model,
		CreatedAt: conv.CreatedAt,
		Exported:  opts.now().UTC().Truncate(time.Second),
		Count:     len(conv.Messages),
	}
	if !withMessages {
		return doc
	}
	for _, m := range conv.Messages {
		dm := docMessage{Role: string(m.Role), Content: m.Text()}
		for _, img := range m.Images {
			di := docImage{Name: img.Name}
			if opts.IncludeImages {
				di.DataURL = img.DataURL
			}
			dm.Images = append(dm.Images, di)
		}
		doc.Messages = append(doc.Messages, dm)
	}
	return doc
}

// YAMLExporter writes a flattened, text-only view of the conversation.
type YAMLExporter struct {
	options *Options
}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

// Export writes conv as YAML.
func (e *YAMLExporter) Export(w io.Writer, conv *model.Conversation) error {
	if err := validate(conv); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(conv, e.options, true)); err != nil {
		return err
	}
	return enc.Close()
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string { return ".yaml" }

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string { return "application/yaml" }
