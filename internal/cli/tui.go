// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	uichat "github.com/bensaine/payg-chatgpt/internal/ui/chat"
	"github.com/bensaine/payg-chatgpt/internal/ui/styles"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the chat screen (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, a)
		},
	}
}

func runTUI(cmd *cobra.Command, a *app) error {
	if !IsTTY() || !IsStdoutTTY() {
		return errors.New("the chat screen needs a terminal; use 'payg send' for scripting")
	}
	ctrl, err := a.controller()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	return uichat.Run(cmd.Context(), ctrl, uichat.Options{
		Theme:          styles.NewTheme(a.cfg.UI.Theme),
		RenderMarkdown: a.cfg.UI.RenderMarkdown,
		ExportDir:      ".",
	})
}
