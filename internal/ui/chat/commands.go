// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/bensaine/payg-chatgpt/internal/credential"
	"github.com/bensaine/payg-chatgpt/internal/export"
	"github.com/bensaine/payg-chatgpt/internal/model"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

type commandInfo struct {
	name    string
	usage   string
	handler CommandHandler
}

var commandList []commandInfo

// commandHandlers maps command names to their handler functions.
var commandHandlers map[string]CommandHandler

func init() {
	commandList = []commandInfo{
		{"new", "/new", handleNewCommand},
		{"switch", "/switch <n|id>", handleSwitchCommand},
		{"rename", "/rename <title>", handleRenameCommand},
		{"delete", "/delete [n|id]", handleDeleteCommand},
		{"clear", "/clear", handleClearCommand},
		{"image", "/image <path>", handleImageCommand},
		{"unstage", "/unstage <n>", handleUnstageCommand},
		{"key", "/key <api-key> [model]", handleKeyCommand},
		{"model", "/model [id]", handleModelCommand},
		{"export", "/export [markdown|json|yaml]", handleExportCommand},
		{"help", "/help", handleHelpCommand},
		{"quit", "/quit", handleQuitCommand},
	}
	commandHandlers = make(map[string]CommandHandler, len(commandList)+2)
	for _, c := range commandList {
		commandHandlers[c.name] = c.handler
	}
	commandHandlers["q"] = handleQuitCommand
	commandHandlers["?"] = handleHelpCommand
}

// parseCommand splits "/name arg..." into its parts.
func parseCommand(input string) (string, []string, bool) {
	input = strings.TrimSpace(input)
	if len(input) < 2 || input[0] != '/' {
		return "", nil, false
	}
	fields := strings.Fields(input[1:])
	return strings.ToLower(fields[0]), fields[1:], true
}

func (m Model) runCommand(name string, args []string) (tea.Model, tea.Cmd) {
	handler, ok := commandHandlers[name]
	if !ok {
		m.setStatus(fmt.Sprintf("Unknown command /%s (try /help)", name), true)
		return m, nil
	}
	return handler(&m, args)
}

// done refreshes and returns m after a command.
func done(m *Model, status string, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.setStatus(err.Error(), true)
	} else {
		m.setStatus(status, false)
	}
	m.refresh()
	return *m, nil
}

// resolveConversation maps a 1-based list position or an id prefix to a
// conversation id.
func (m *Model) resolveConversation(arg string) (string, bool) {
	convs := m.view.Conversations
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(convs) {
			return "", false
		}
		return convs[n-1].ID, true
	}
	for _, c := range convs {
		if strings.HasPrefix(c.ID, arg) {
			return c.ID, true
		}
	}
	return "", false
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func handleNewCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	_, err := m.ctrl.NewConversation()
	return done(m, "New conversation", err)
}

func handleSwitchCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return done(m, "", errors.Errorf("usage: /switch <n|id>"))
	}
	id, ok := m.resolveConversation(args[0])
	if !ok {
		return done(m, "", errors.Errorf("no conversation %q", args[0]))
	}
	if _, err := m.ctrl.SwitchConversation(id); err != nil {
		return done(m, "", err)
	}
	m.refresh()
	m.viewport.GotoBottom()
	return done(m, "", nil)
}

func handleRenameCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	id := m.view.ActiveID
	if id == "" {
		return done(m, "", errors.Errorf("no active conversation"))
	}
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		return done(m, "", errors.Errorf("usage: /rename <title>"))
	}
	return done(m, "Renamed", m.ctrl.RenameConversation(id, title))
}

func handleDeleteCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	id := m.view.ActiveID
	if len(args) > 0 {
		var ok bool
		if id, ok = m.resolveConversation(args[0]); !ok {
			return done(m, "", errors.Errorf("no conversation %q", args[0]))
		}
	}
	if id == "" {
		return done(m, "", errors.Errorf("no active conversation"))
	}
	return done(m, "Conversation deleted", m.ctrl.DeleteConversation(id))
}

func handleClearCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	id := m.view.ActiveID
	if id == "" {
		return done(m, "", errors.Errorf("no active conversation"))
	}
	return done(m, "Conversation cleared", m.ctrl.ClearConversation(id))
}

// =============================================================================
// ATTACHMENT COMMANDS
// =============================================================================

func handleImageCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return done(m, "", errors.Errorf("usage: /image <path>"))
	}
	path := strings.Join(args, " ")
	ok, err := m.ctrl.Stager().AddFile(path)
	if err != nil {
		return done(m, "", err)
	}
	if !ok {
		return done(m, "", errors.Errorf("not an image: %s", path))
	}
	return done(m, "Attaching "+path, nil)
}

func handleUnstageCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return done(m, "", errors.Errorf("usage: /unstage <n>"))
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || !m.ctrl.Stager().Remove(n-1) {
		return done(m, "", errors.Errorf("no attachment %q", args[0]))
	}
	return done(m, "Attachment removed", nil)
}

// =============================================================================
// CREDENTIAL COMMANDS
// =============================================================================

func handleKeyCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return done(m, "", errors.Errorf("usage: /key <api-key> [model]"))
	}
	modelID := m.ctrl.Credentials().Model()
	if len(args) > 1 {
		modelID = args[1]
	}
	if err := m.ctrl.SaveCredential(args[0], modelID); err != nil {
		return done(m, "", err)
	}
	masked := credential.Credential{APIKey: args[0]}.Masked()
	return done(m, fmt.Sprintf("API key %s saved, model %s", masked, modelID), nil)
}

func handleModelCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return done(m, fmt.Sprintf("Model %s (available: %s)",
			m.view.Model, strings.Join(model.SupportedModelIDs(), ", ")), nil)
	}
	if err := m.ctrl.SetModel(args[0]); err != nil {
		return done(m, "", err)
	}
	return done(m, "Model set to "+args[0], nil)
}

// =============================================================================
// OTHER COMMANDS
// =============================================================================

func handleExportCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	conv, ok := m.ctrl.Store().Active()
	if !ok {
		return done(m, "", errors.Errorf("no active conversation"))
	}
	format := "markdown"
	if len(args) > 0 {
		format = args[0]
	}
	opts := export.DefaultOptions()
	opts.Model = m.view.Model
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return done(m, "", err)
	}
	path, err := export.ToFile(conv, exporter, m.opts.ExportDir)
	if err != nil {
		return done(m, "", err)
	}
	return done(m, "Exported to "+path, nil)
}

func handleHelpCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	usages := make([]string, len(commandList))
	for i, c := range commandList {
		usages[i] = c.usage
	}
	m.help.ShowAll = true
	m.layout()
	return done(m, strings.Join(usages, "  "), nil)
}

func handleQuitCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.ctrl.Abandon()
	m.quitting = true
	return *m, tea.Quit
}
