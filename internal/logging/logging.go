// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how log lines are written.
type Options struct {
	Level  string // trace, debug, info, warn, error, disabled
	Format string // auto, console, json
	File   string // optional rotating log file
	// Quiet drops the stderr writer, leaving only File. The TUI sets it so
	// log lines do not corrupt the screen.
	Quiet bool
	// Stderr overrides os.Stderr; used by tests.
	Stderr io.Writer
}

// Init installs the global logger described by opts.
func Init(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, consoleOrJSON(stderr, opts.Format))
	}
	if opts.File != "" {
		writers = append(writers, zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			},
		})
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func consoleOrJSON(out io.Writer, format string) io.Writer {
	switch strings.ToLower(format) {
	case "json":
		return out
	case "console":
		return zerolog.ConsoleWriter{Out: out}
	}
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return zerolog.ConsoleWriter{Out: out}
	}
	return out
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, errors.Errorf("unknown log level %q", name)
	}
}
