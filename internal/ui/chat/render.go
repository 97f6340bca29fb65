// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	core "github.com/bensaine/payg-chatgpt/internal/chat"
	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/session"
	"github.com/bensaine/payg-chatgpt/internal/ui/styles"
	"github.com/bensaine/payg-chatgpt/internal/util"
)

const errorMarker = "[Error: "

// renderer turns a View into viewport content.
type renderer struct {
	theme    *styles.Theme
	markdown bool
	md       *glamour.TermRenderer
	width    int
	cache    map[string]string
}

func newRenderer(theme *styles.Theme, markdown bool) *renderer {
	return &renderer{theme: theme, markdown: markdown, cache: map[string]string{}}
}

// resize rebuilds the markdown renderer for a new wrap width.
func (r *renderer) resize(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.cache = map[string]string{}
	r.md = nil
	if !r.markdown || width <= 0 {
		return
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width - 4)}
	if style := r.theme.GlamourStyle(); style == styles.ThemeAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		log.Warn().Err(err).Msg("markdown renderer unavailable, using plain text")
		return
	}
	r.md = md
}

// conversation renders the committed messages of the active conversation,
// followed by the in-flight exchange when it belongs to it.
func (r *renderer) conversation(v core.View, spinner string) string {
	var sb strings.Builder

	if len(v.Messages) == 0 && !v.StreamingHere() {
		sb.WriteString(r.theme.Muted.Render("Start a conversation by typing below."))
		sb.WriteString("\n")
		if !v.HasCredential {
			sb.WriteString("\n")
			sb.WriteString(r.theme.ErrorText.Render("No API key configured. Use /key <api-key> [model] or set OPENAI_API_KEY."))
			sb.WriteString("\n")
		}
		return sb.String()
	}

	for _, m := range v.Messages {
		sb.WriteString(r.message(m))
		sb.WriteString("\n")
	}

	if v.StreamingHere() {
		if v.Stream.Pending != nil {
			sb.WriteString(r.message(*v.Stream.Pending))
			sb.WriteString("\n")
		}
		sb.WriteString(r.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
		sb.WriteString(" ")
		sb.WriteString(spinner)
		sb.WriteString("\n")
		if v.Stream.State == session.StateSending {
			sb.WriteString(r.theme.Streaming.Render("  Thinking..."))
		} else {
			sb.WriteString(r.theme.MessageBody.Render(v.Stream.Buffer))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *renderer) message(m model.Message) string {
	var sb strings.Builder
	if m.Role == model.RoleUser {
		sb.WriteString(r.theme.UserLabel.Render(m.Role.DisplayName()))
	} else {
		sb.WriteString(r.theme.AssistantLabel.Render(m.Role.DisplayName()))
	}
	sb.WriteString("\n")

	body, annotation := splitError(m.Text())
	if strings.TrimSpace(body) != "" {
		sb.WriteString(r.body(m.Role, body))
		sb.WriteString("\n")
	}
	if annotation != "" {
		sb.WriteString("  ")
		sb.WriteString(r.theme.ErrorText.Render(annotation))
		sb.WriteString("\n")
	}
	for _, img := range m.Images {
		sb.WriteString(r.theme.Staged.Render("  [image: " + img.Name + "]"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *renderer) body(role model.Role, text string) string {
	if r.md == nil || role == model.RoleUser {
		return r.theme.MessageBody.Render(text)
	}
	if out, ok := r.cache[text]; ok {
		return out
	}
	out, err := r.md.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("markdown render failed")
		return r.theme.MessageBody.Render(text)
	}
	out = strings.TrimRight(out, "\n")
	r.cache[text] = out
	return out
}

// splitError separates the in-band error annotation from a response.
func splitError(text string) (body, annotation string) {
	if strings.HasPrefix(text, errorMarker) && strings.HasSuffix(text, "]") {
		return "", text
	}
	i := strings.LastIndex(text, "\n\n"+errorMarker)
	if i < 0 || !strings.HasSuffix(text, "]") {
		return text, ""
	}
	return text[:i], text[i+2:]
}

// sidebar renders the conversation list, newest first.
func (r *renderer) sidebar(v core.View, width, height int) string {
	lines := make([]string, 0, len(v.Conversations)+1)
	lines = append(lines, r.theme.HeaderTitle.Render("Chats"))
	for i, c := range v.Conversations {
		if len(lines) >= height {
			break
		}
		label := util.TruncateWidth(fmt.Sprintf("%d %s", i+1, c.Title), width)
		if c.ID == v.ActiveID {
			lines = append(lines, r.theme.SidebarActive.Render(label))
		} else {
			lines = append(lines, r.theme.SidebarItem.Render(label))
		}
	}
	return r.theme.Sidebar.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

// staged renders the attachment line, or "" when nothing is staged.
func (r *renderer) staged(v core.View) string {
	if len(v.Staged) == 0 && v.PendingImages == 0 {
		return ""
	}
	names := make([]string, len(v.Staged))
	for i, img := range v.Staged {
		names[i] = fmt.Sprintf("%d:%s", i+1, img.Name)
	}
	line := "Attached: " + strings.Join(names, ", ")
	if v.PendingImages > 0 {
		line += fmt.Sprintf(" (%d loading)", v.PendingImages)
	}
	return r.theme.Staged.Render(line)
}
