// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bensaine/payg-chatgpt/internal/model"
	"github.com/bensaine/payg-chatgpt/internal/util"
)

func newModelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			selected := a.creds.Model()
			w := cmd.OutOrStdout()
			for _, m := range model.SupportedModels() {
				marker := "  "
				if m.ID == selected {
					marker = "* "
				}
				vision := ""
				if m.Vision {
					vision = "vision"
				}
				fmt.Fprintf(w, "%s%s %s %s %s\n",
					marker,
					util.PadRight(m.ID, 16),
					util.PadRight(m.ContextString(), 10),
					util.PadRight(vision, 7),
					style(DimStyle).Render(m.Description))
			}
			return nil
		},
	}
}
