// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

// optionalArg returns the first arg or "".
func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// =============================================================================
// LIST / SHOW
// =============================================================================

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(a.store.List()))
			if a.store.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show [n|id]",
		Short: "Print a conversation (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id, err := a.resolveConversation(optionalArg(args))
			if err != nil {
				return err
			}
			conv, ok := a.store.Get(id)
			if !ok {
				return errors.Wrap(storage.ErrConversationNotFound, id)
			}
			markdown := !raw && a.cfg.UI.RenderMarkdown && ColorsEnabled()
			printTranscript(cmd.OutOrStdout(), conv, markdown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print message text without markdown rendering")
	return cmd
}

func printTranscript(w io.Writer, conv *model.Conversation, markdown bool) {
	fmt.Fprintln(w, style(TitleStyle).Render(conv.Title))
	fmt.Fprintln(w, style(DimStyle).Render(fmt.Sprintf("%s  %d messages",
		conv.CreatedAt.Local().Format("2006-01-02 15:04"), len(conv.Messages))))

	var md *glamour.TermRenderer
	if markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-2),
		)
		if err != nil {
			log.Debug().Err(err).Msg("markdown renderer unavailable")
		} else {
			md = r
		}
	}

	for _, m := range conv.Messages {
		fmt.Fprintln(w)
		label := style(AssistantStyle).Render(m.Role.DisplayName() + ":")
		if m.Role == model.RoleUser {
			label = style(UserStyle).Render(m.Role.DisplayName() + ":")
		}
		fmt.Fprintln(w, label)

		text := m.Text()
		if md != nil && m.Role == model.RoleAssistant {
			if out, err := md.Render(text); err == nil {
				text = strings.TrimRight(out, "\n")
			}
		}
		if text != "" {
			fmt.Fprintln(w, text)
		}
		for _, img := range m.Images {
			fmt.Fprintln(w, style(WarningStyle).Render("[image: "+img.Name+"]"))
		}
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

func newNewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			conv, err := a.store.Create()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Created")+" "+conv.ID)
			return nil
		},
	}
}

func newSwitchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <n|id>",
		Short: "Make a conversation active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id, err := a.resolveConversation(args[0])
			if err != nil {
				return err
			}
			if _, err := a.store.SwitchActive(id); err != nil {
				return err
			}
			conv, _ := a.store.Get(id)
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Active:")+" "+conv.Title)
			return nil
		},
	}
}

func newRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <n|id> <title...>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id, err := a.resolveConversation(args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if strings.TrimSpace(title) == "" {
				return errors.New("title must not be blank")
			}
			if err := a.store.Rename(id, title); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Renamed"))
			return nil
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <n|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id, err := a.resolveConversation(args[0])
			if err != nil {
				return err
			}
			if err := a.store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Deleted"))
			return nil
		},
	}
}

func newClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [n|id]",
		Short: "Remove every message from a conversation (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			id, err := a.resolveConversation(optionalArg(args))
			if err != nil {
				return err
			}
			if err := a.store.Clear(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Cleared"))
			return nil
		},
	}
}
