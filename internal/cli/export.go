// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bensaine/payg-chatgpt/internal/export"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		outDir string
		images bool
	)
	cmd := &cobra.Command{
		Use:   "export [n|id]",
		Short: "Export a conversation (default: the active one)",
		Long: "Export a conversation as " + strings.Join(export.Formats(), ", ") + `.
With --out - the export is written to stdout.`,
		Args: cobra.MaximumNArgs(1),
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

			opts := export.DefaultOptions()
			opts.IncludeImages = images
			opts.Model = a.creds.Model()
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}

			if outDir == "-" {
				return exporter.Export(cmd.OutOrStdout(), conv)
			}
			path, err := export.ToFile(conv, exporter, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Exported to")+" "+path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory, or - for stdout")
	cmd.Flags().BoolVar(&images, "images", false, "embed image data")
	return cmd
}
