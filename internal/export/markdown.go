// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bensaine/payg-chatgpt/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export writes conv as Markdown.
func (e *MarkdownExporter) Export(w io.Writer, conv *model.Conversation) error {
	if err := validate(conv); err != nil {
		return err
	}

	var sb strings.Builder

	// Front matter is encoded by yaml.v3 so titles cannot break out of it.
	if e.options.IncludeMetadata {
		fm, err := yaml.Marshal(newDocument(conv, e.options, false))
		if err != nil {
			return err
		}
		sb.WriteString("---\n")
		sb.Write(fm)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		if e.options.Model != "" {
			fmt.Fprintf(&sb, "- **Model**: %s\n", e.options.Model)
		}
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(conv.CreatedAt))
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(conv.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	if len(conv.Messages) == 0 {
		sb.WriteString("*No messages.*\n")
	}

	for i, msg := range conv.Messages {
		fmt.Fprintf(&sb, "### %s\n\n", formatRoleLabel(msg.Role))

		if text := strings.TrimSpace(msg.Text()); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
		for _, img := range msg.Images {
			sb.WriteString(e.formatImage(img))
			sb.WriteString("\n\n")
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatRoleLabel(role model.Role) string {
	switch role {
	case model.RoleUser, model.RoleAssistant:
		return "[" + role.DisplayName() + "]"
	case "":
		return "Unknown"
	default:
		runes := []rune(string(role))
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

func (e *MarkdownExporter) formatImage(img model.ImageRef) string {
	name := escapeMarkdown(img.Name)
	if name == "" {
		name = "image"
	}
	if e.options.IncludeImages && img.DataURL != "" {
		return fmt.Sprintf("![%s](%s)", name, img.DataURL)
	}
	return fmt.Sprintf("*[image: %s]*", name)
}

// escapeMarkdown escapes characters that would break formatting in
// headings and labels.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
