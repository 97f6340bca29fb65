// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bensaine/payg-chatgpt/internal/config"
	"github.com/bensaine/payg-chatgpt/internal/credential"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings and credentials",
	}
	cmd.AddCommand(
		newConfigShowCommand(a),
		newConfigPathCommand(a),
		newConfigInitCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
		newConfigSetKeyCommand(a),
		newConfigSetModelCommand(a),
	)
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprint(w, a.cfg.String())

			fmt.Fprintln(w)
			fmt.Fprintln(w, style(TitleStyle).Render("Credential"))
			cred, ok := a.creds.Get()
			key := style(WarningStyle).Render("not set")
			if ok {
				key = cred.Masked()
			}
			fmt.Fprintln(w, RenderLabel("API key")+key)
			fmt.Fprintln(w, RenderLabel("Model")+cred.Model)
			return nil
		},
	}
}

func newConfigPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file and data directory paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return err
			}
			dir, err := a.cfg.DataDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderLabel("Config file")+path)
			fmt.Fprintln(cmd.OutOrStdout(), RenderLabel("Data directory")+dir)
			return nil
		},
	}
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Wrote")+" "+path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting, e.g. stream.pacing_ms",
		Long:  "Print one setting. Keys:\n  " + strings.Join(config.Keys(), "\n  "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Long:  "Change one setting in the config file. Keys:\n  " + strings.Join(config.Keys(), "\n  "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.resolvedConfigPath()
			if err != nil {
				return err
			}
			// Edit the file alone so flags and env overrides are not saved.
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Set")+" "+args[0]+" = "+args[1])
			return nil
		},
	}
}

func newConfigSetKeyCommand(a *app) *cobra.Command {
	var modelID string
	cmd := &cobra.Command{
		Use:   "set-key [api-key]",
		Short: "Save the OpenAI API key (prompts when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			key := optionalArg(args)
			if key == "" {
				var err error
				key, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "OpenAI API key: ")
				if err != nil {
					return err
				}
			}
			if key == "" {
				return errors.New("API key must not be empty")
			}
			if modelID == "" {
				modelID = a.creds.Model()
			}
			if err := a.creds.Set(key, modelID); err != nil {
				return err
			}
			masked := credential.Credential{APIKey: key}.Masked()
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Saved")+" "+masked+" ("+modelID+")")
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "model to use (default: keep the current one)")
	return cmd
}

func newConfigSetModelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-model <model>",
		Short: "Choose the chat model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if err := a.creds.SetModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), style(SuccessStyle).Render("Model")+" "+a.creds.Model())
			return nil
		},
	}
}
