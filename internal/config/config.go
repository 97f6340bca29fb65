// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/bensaine/payg-chatgpt/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete payg configuration.
type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Stream      StreamConfig      `toml:"stream"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Log         LogConfig         `toml:"log"`
	UI          UIConfig          `toml:"ui"`
}

// StorageConfig selects the durable key-value backend.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend"`
	// DataDir holds state.json / payg.db. Empty means the config directory.
	DataDir string `toml:"data_dir"`
}

// APIConfig configures the completion endpoint.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	// RequestTimeoutSecs bounds a whole streamed response. 0 disables it.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
}

// StreamConfig controls how fragments are applied.
type StreamConfig struct {
	// PacingMS is the minimum delay between applied fragments.
	PacingMS int `toml:"pacing_ms"`
}

// AttachmentsConfig controls image staging.
type AttachmentsConfig struct {
	// OrderBySubmission sorts staged images by the order they were added
	// instead of the order their decodes finished.
	OrderBySubmission bool `toml:"order_by_submission"`
	// MaxBytes rejects larger images. 0 means no limit.
	MaxBytes int64 `toml:"max_bytes"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "auto", "console" or "json"
	File   string `toml:"file"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme          string `toml:"theme"`
	RenderMarkdown bool   `toml:"render_markdown"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "file",
		},
		API: APIConfig{
			BaseURL:            "https://api.openai.com/v1",
			RequestTimeoutSecs: 300,
		},
		Stream: StreamConfig{
			PacingMS: 10,
		},
		Attachments: AttachmentsConfig{
			MaxBytes: 20 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		UI: UIConfig{
			Theme:          "dark",
			RenderMarkdown: true,
		},
	}
}

// Pacing returns the fragment pacing as a duration.
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.Stream.PacingMS) * time.Millisecond
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSecs) * time.Second
}

// DataDir returns the resolved data directory.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	return ConfigDir()
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the payg configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".payg"), nil
}

// DefaultPath returns the path to the TOML config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path (the default path when empty). A missing
// file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFile reads only the file at path, without environment overrides or
// validation. Use it to edit and Save the file.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	fillDefaults(cfg)
	return cfg, nil
}

// fillDefaults restores defaults for string settings that were set to "".
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// Save writes cfg to path (the default path when empty) with 0600
// permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	var buf bytes.Buffer
	buf.WriteString("# payg configuration file\n")
	buf.WriteString("# Generated by payg - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides:
//   - PAYG_DATA_DIR: overrides storage.data_dir
//   - PAYG_STORAGE_BACKEND: overrides storage.backend
//   - PAYG_BASE_URL: overrides api.base_url
//   - PAYG_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("PAYG_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if backend := os.Getenv("PAYG_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if base := os.Getenv("PAYG_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}
	if level := os.Getenv("PAYG_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend),
		})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.API.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: "scheme must be http or https",
		})
	}

	if c.API.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "api.request_timeout_secs", Message: "must not be negative"})
	}
	if c.Stream.PacingMS < 0 || c.Stream.PacingMS > 1000 {
		errs = append(errs, ValidationError{Field: "stream.pacing_ms", Message: "must be between 0 and 1000"})
	}
	if c.Attachments.MaxBytes < 0 {
		errs = append(errs, ValidationError{Field: "attachments.max_bytes", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: auto, console, json", c.Log.Format),
		})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light", "notty":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Keys returns every settable key in dot notation, e.g. "stream.pacing_ms".
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Get returns the value at key in dot notation.
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the setting at key. The result is not validated;
// call Validate afterwards.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Errorf("%s: expected a boolean, got %q", key, value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.Errorf("%s: expected an integer, got %q", key, value)
		}
		field.SetInt(n)
	default:
		return errors.Errorf("%s: unsupported type %s", key, field.Kind())
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, errors.Errorf("invalid key %q, expected section.name", key)
	}

	v := reflect.ValueOf(c).Elem()
	section, ok := fieldByTag(v, parts[0])
	if !ok {
		return reflect.Value{}, errors.Errorf("unknown section: %s", parts[0])
	}
	field, ok := fieldByTag(section, parts[1])
	if !ok {
		return reflect.Value{}, errors.Errorf("unknown field: %s", key)
	}
	return field, nil
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(c)
	return buf.String()
}
