// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bensaine/payg-chatgpt/internal/attach"
	"github.com/bensaine/payg-chatgpt/internal/chat"
	"github.com/bensaine/payg-chatgpt/internal/cloud"
	"github.com/bensaine/payg-chatgpt/internal/config"
	"github.com/bensaine/payg-chatgpt/internal/credential"
	"github.com/bensaine/payg-chatgpt/internal/kv"
	"github.com/bensaine/payg-chatgpt/internal/logging"
	"github.com/bensaine/payg-chatgpt/internal/session"
	"github.com/bensaine/payg-chatgpt/internal/storage"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app holds what the commands share: flags, the loaded config and the
// lazily opened stores.
type app struct {
	configPath string
	dataDir    string
	backendArg string
	logLevel   string

	cfg     *config.Config
	backend cloud.Backend

	kv    kv.Store
	store *storage.Store
	creds *credential.Store
}

// Option customizes the root command.
type Option func(*app)

// WithBackend replaces the OpenAI backend.
func WithBackend(b cloud.Backend) Option {
	return func(a *app) { a.backend = b }
}

// resolvedConfigPath returns --config or the default path.
func (a *app) resolvedConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.DefaultPath()
}

// setup loads the config, applies the global flags and installs logging.
func (a *app) setup(cmd *cobra.Command) error {
	path, err := a.resolvedConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Storage.DataDir = a.dataDir
	}
	if a.backendArg != "" {
		cfg.Storage.Backend = a.backendArg
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	a.cfg = cfg

	// The chat screen owns the terminal, so it logs to the file only.
	interactive := cmd.Name() == "tui" || cmd == cmd.Root()
	logFile := cfg.Log.File
	if interactive && logFile == "" {
		if dir, err := cfg.DataDir(); err == nil {
			logFile = filepath.Join(dir, "payg.log")
		}
	}
	return logging.Init(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   logFile,
		Quiet:  interactive,
		Stderr: cmd.ErrOrStderr(),
	})
}

// open opens the key-value store and the stores built on it.
func (a *app) open() error {
	if a.store != nil {
		return nil
	}
	dir, err := a.cfg.DataDir()
	if err != nil {
		return err
	}
	backing, err := kv.Open(a.cfg.Storage.Backend, dir)
	if err != nil {
		return err
	}
	store, err := storage.Open(backing)
	if err != nil {
		backing.Close()
		return err
	}
	a.kv = backing
	a.store = store
	a.creds = credential.NewStore(backing)
	log.Debug().Str("backend", a.cfg.Storage.Backend).Str("dir", dir).Msg("storage opened")
	return nil
}

// controller opens the stores and builds a chat controller over them.
func (a *app) controller() (*chat.Controller, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	backend := a.backend
	if backend == nil {
		backend = cloud.NewOpenAIBackend(cloud.Options{
			BaseURL: a.cfg.API.BaseURL,
			Timeout: a.cfg.RequestTimeout(),
		})
	}
	return chat.New(a.creds, a.store, backend, chat.Options{
		Session: session.Config{Pacing: a.cfg.Pacing()},
		Attach: attach.Options{
			OrderBySubmission: a.cfg.Attachments.OrderBySubmission,
			MaxBytes:          a.cfg.Attachments.MaxBytes,
		},
	}), nil
}

func (a *app) close() {
	if a.kv == nil {
		return
	}
	if err := a.kv.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close storage")
	}
	a.kv, a.store, a.creds = nil, nil, nil
}

// resolveConversation maps a 1-based list position or an id prefix to a
// conversation id. An empty arg means the active conversation.
func (a *app) resolveConversation(arg string) (string, error) {
	if arg == "" {
		if id := a.store.ActiveID(); id != "" {
			return id, nil
		}
		return "", errors.New("no active conversation")
	}
	list := a.store.List()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return "", errors.Wrapf(storage.ErrConversationNotFound, "no conversation #%d", n)
		}
		return list[n-1].ID, nil
	}
	for _, s := range list {
		if strings.HasPrefix(s.ID, arg) {
			return s.ID, nil
		}
	}
	return "", errors.Wrapf(storage.ErrConversationNotFound, "%q", arg)
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the payg command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:           "payg",
		Short:         "Pay-as-you-go ChatGPT in the terminal",
		Long:          "payg is a chat client for the OpenAI API that keeps your conversations on disk.",
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, a)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.payg/config.toml)")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory for stored conversations")
	flags.StringVar(&a.backendArg, "backend", "", "storage backend: file, sqlite or memory")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")

	root.AddCommand(
		newTUICommand(a),
		newSendCommand(a),
		newListCommand(a),
		newShowCommand(a),
		newNewCommand(a),
		newSwitchCommand(a),
		newRenameCommand(a),
		newDeleteCommand(a),
		newClearCommand(a),
		newExportCommand(a),
		newModelsCommand(a),
		newConfigCommand(a),
	)
	closeAfterRun(root, a)
	return root
}

// closeAfterRun makes every command release the stores when it returns,
// including on error.
func closeAfterRun(cmd *cobra.Command, a *app) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			defer a.close()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, a)
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln(style(ErrorStyle).Render("Error: " + err.Error()))
		return 1
	}
	return 0
}
