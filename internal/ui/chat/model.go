// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	core "github.com/bensaine/payg-chatgpt/internal/chat"
	"github.com/bensaine/payg-chatgpt/internal/ui/styles"
)

const (
	sidebarWidth    = 28
	minSidebarWidth = 72
)

// Options configures the chat Model.
type Options struct {
	Theme          *styles.Theme
	RenderMarkdown bool
	// ExportDir is where /export writes files.
	ExportDir string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx  context.Context
	ctrl *core.Controller
	opts Options

	theme    *styles.Theme
	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	render   *renderer

	view        core.View
	width       int
	height      int
	showSidebar bool

	status    string
	statusErr bool
	quitting  bool
}

// New creates the chat Model. ctx bounds every request it starts.
func New(ctx context.Context, ctrl *core.Controller, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ThemeAuto)
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.Placeholder = "Type a message, or /help"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = opts.Theme.Muted

	m := Model{
		ctx:         ctx,
		ctrl:        ctrl,
		opts:        opts,
		theme:       opts.Theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		viewport:    viewport.New(80, 20),
		input:       ti,
		spinner:     sp,
		render:      newRenderer(opts.Theme, opts.RenderMarkdown),
		showSidebar: true,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case refreshMsg:
		m.refresh()
		return m, nil

	case statusMsg:
		m.status, m.statusErr = msg.text, msg.err
		return m, nil

	case spinner.TickMsg:
		if !m.view.Stream.State.InFlight() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Abandon()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Abandon):
		if m.ctrl.Abandon() {
			m.setStatus("Response discarded", false)
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		return m.runCommand("new", nil)

	case key.Matches(msg, m.keys.PrevChat):
		m.cycleConversation(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextChat):
		m.cycleConversation(1)
		return m, nil

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.layout()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input, or runs it when it is a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := m.input.Value()
	if name, args, ok := parseCommand(input); ok {
		m.input.Reset()
		return m.runCommand(name, args)
	}

	if err := m.ctrl.Send(m.ctx, input); err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.input.Reset()
	m.setStatus("", false)
	m.refresh()
	m.viewport.GotoBottom()
	return m, m.spinner.Tick
}

func (m *Model) cycleConversation(step int) {
	convs := m.view.Conversations
	if len(convs) < 2 {
		return
	}
	cur := 0
	for i, c := range convs {
		if c.ID == m.view.ActiveID {
			cur = i
		}
	}
	next := (cur + step + len(convs)) % len(convs)
	if _, err := m.ctrl.SwitchConversation(convs[next].ID); err != nil {
		m.setStatus(err.Error(), true)
	}
	m.refresh()
	m.viewport.GotoBottom()
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status, m.statusErr = text, isErr
}

// refresh redraws the viewport from a fresh View, following the bottom
// when it was already there.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.view = m.ctrl.View()
	m.viewport.SetContent(m.render.conversation(m.view, m.spinner.View()))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) sidebarVisible() bool {
	return m.showSidebar && m.width >= minSidebarWidth
}

func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	contentWidth := m.width
	if m.sidebarVisible() {
		contentWidth -= sidebarWidth + 2
	}

	// header, input, staged line, status line
	reserved := 4
	if m.help.ShowAll {
		reserved += 2
	}
	height := m.height - reserved
	if height < 3 {
		height = 3
	}

	m.viewport.Width = contentWidth
	m.viewport.Height = height
	m.input.Width = m.width - 4
	m.help.Width = m.width
	m.render.resize(contentWidth)
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	body := m.viewport.View()
	if m.sidebarVisible() {
		side := m.render.sidebar(m.view, sidebarWidth, m.viewport.Height)
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, " ", body)
	}

	parts := []string{m.header(), body, m.render.staged(m.view), m.input.View(), m.statusLine()}
	return strings.Join(parts, "\n")
}

func (m Model) header() string {
	title := m.view.ActiveTitle
	if title == "" {
		title = "payg"
	}
	right := m.view.Model
	if state := m.view.Stream.State; state.InFlight() {
		right = state.String() + " | " + right
	}
	line := m.theme.HeaderTitle.Render(title) + "  " + m.theme.HeaderModel.Render(right)
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) statusLine() string {
	if m.status != "" {
		if m.statusErr {
			return m.theme.StatusError.Render(m.status)
		}
		return m.theme.StatusOK.Render(m.status)
	}
	return m.help.View(m.keys)
}
