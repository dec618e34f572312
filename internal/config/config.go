// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xhjxhj001/mcp-chat-server/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete mcpchat configuration.
type Config struct {
	Version string `toml:"version"`

	// Server is the chat backend.
	Server ServerConfig `toml:"server"`

	// Chat controls how questions are sent.
	Chat ChatConfig `toml:"chat"`

	// UI controls rendering.
	UI UIConfig `toml:"ui"`

	// Log controls the clue logger.
	Log LogConfig `toml:"log"`

	// Storage is the local transcript archive.
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig describes how to reach the chat server.
type ServerConfig struct {
	// URL is the server base URL, e.g. http://127.0.0.1:8000
	URL string `toml:"url"`
	// TimeoutSecs bounds non-streaming requests. Streams are bounded only by
	// cancellation.
	TimeoutSecs int `toml:"timeout_secs"`
	// RequestsPerSecond limits outgoing requests (0 = unlimited)
	RequestsPerSecond float64 `toml:"requests_per_second"`
	// Burst is the limiter bucket size
	Burst int `toml:"burst"`
}

// ChatConfig contains per-request chat settings.
type ChatConfig struct {
	// HistoryTurns is how many earlier turns the server replays as context.
	HistoryTurns int `toml:"history_turns"`
	// Streaming selects /api/stream over /api/query.
	Streaming bool `toml:"streaming"`
	// CursorBlinkMS is the streaming cursor period.
	CursorBlinkMS int `toml:"cursor_blink_ms"`
}

// UIConfig contains rendering settings.
type UIConfig struct {
	// WordWrap is the markdown wrap width (0 = terminal width)
	WordWrap int `toml:"word_wrap"`
	// Style is the glamour style: auto, dark, light, notty, ascii
	Style string `toml:"style"`
	// ShowToolCards renders tool call cards under assistant messages.
	ShowToolCards bool `toml:"show_tool_cards"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level"`
	// Format is auto, json, text or terminal
	Format string `toml:"format"`
	// File receives log output instead of stderr when set.
	File string `toml:"file"`
}

// StorageConfig contains transcript archive settings.
type StorageConfig struct {
	Enabled bool `toml:"enabled"`
	// Path of the SQLite database (empty = ~/.mcpchat/history.db)
	Path string `toml:"path"`
	// MaxSessions caps stored transcripts; older ones are pruned (0 = unlimited)
	MaxSessions int `toml:"max_sessions"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			URL:               "http://127.0.0.1:8000",
			TimeoutSecs:       120,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Chat: ChatConfig{
			HistoryTurns:  5,
			Streaming:     true,
			CursorBlinkMS: 500,
		},
		UI: UIConfig{
			WordWrap:      0,
			Style:         "auto",
			ShowToolCards: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Storage: StorageConfig{
			Enabled:     true,
			MaxSessions: 1000,
		},
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// BlinkInterval returns the cursor period as a duration.
func (c *Config) BlinkInterval() time.Duration {
	return time.Duration(c.Chat.CursorBlinkMS) * time.Millisecond
}

// ArchivePath returns the transcript database path.
func (c *Config) ArchivePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "MCPCHAT_HOME"

// ConfigDir returns the mcpchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mcpchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file, falling back to defaults when it does
// not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		return cfg, finish(cfg)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
// Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path without environment overrides, for editing and saving
// back. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func decodeFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to path atomically with 0600 permissions.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# mcpchat configuration file\n")
	buf.WriteString("# Generated by mcpchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validStyles  = []string{"auto", "dark", "light", "notty", "ascii", "dracula", "pink", "tokyo-night"}
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"auto", "json", "text", "terminal"}
)

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if u, err := url.Parse(c.Server.URL); err != nil {
		add("server.url", "invalid URL: %v", err)
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("server.url", "must be an http(s) URL with a host, got %q", c.Server.URL)
	}
	if c.Server.TimeoutSecs <= 0 {
		add("server.timeout_secs", "must be positive, got %d", c.Server.TimeoutSecs)
	}
	if c.Server.RequestsPerSecond < 0 {
		add("server.requests_per_second", "cannot be negative")
	}
	if c.Server.RequestsPerSecond > 0 && c.Server.Burst < 1 {
		add("server.burst", "must be at least 1 when rate limiting, got %d", c.Server.Burst)
	}

	// Chat
	if c.Chat.HistoryTurns < 0 || c.Chat.HistoryTurns > 50 {
		add("chat.history_turns", "must be 0-50, got %d", c.Chat.HistoryTurns)
	}
	if c.Chat.CursorBlinkMS < 50 || c.Chat.CursorBlinkMS > 5000 {
		add("chat.cursor_blink_ms", "must be 50-5000, got %d", c.Chat.CursorBlinkMS)
	}

	// UI
	if c.UI.WordWrap < 0 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be 0-400, got %d", c.UI.WordWrap)
	}
	if !oneOf(c.UI.Style, validStyles) {
		add("ui.style", "invalid style '%s', must be one of: %s", c.UI.Style, strings.Join(validStyles, ", "))
	}

	// Log
	if !oneOf(c.Log.Level, validLevels) {
		add("log.level", "invalid level '%s', must be one of: %s", c.Log.Level, strings.Join(validLevels, ", "))
	}
	if !oneOf(c.Log.Format, validFormats) {
		add("log.format", "invalid format '%s', must be one of: %s", c.Log.Format, strings.Join(validFormats, ", "))
	}

	// Storage
	if c.Storage.MaxSessions < 0 {
		add("storage.max_sessions", "cannot be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// SetDefaults fills empty string and zero fields that have no meaningful
// zero value.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if c.Chat.CursorBlinkMS == 0 {
		c.Chat.CursorBlinkMS = defaults.Chat.CursorBlinkMS
	}
	if c.UI.Style == "" {
		c.UI.Style = defaults.UI.Style
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - MCPCHAT_SERVER_URL: overrides server.url
//   - MCPCHAT_HISTORY_TURNS: overrides chat.history_turns
//   - MCPCHAT_LOG_LEVEL: overrides log.level
//   - MCPCHAT_NO_STREAM: set to "1" or "true" to disable streaming
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("MCPCHAT_SERVER_URL"); u != "" {
		c.Server.URL = u
	}
	if turns := os.Getenv("MCPCHAT_HISTORY_TURNS"); turns != "" {
		if n, err := strconv.Atoi(turns); err == nil {
			c.Chat.HistoryTurns = n
		}
	}
	if level := os.Getenv("MCPCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if noStream := os.Getenv("MCPCHAT_NO_STREAM"); noStream != "" {
		c.Chat.Streaming = !(noStream == "1" || strings.EqualFold(noStream, "true"))
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.history_turns").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := parseBool(strVal)
			if err != nil {
				return err
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %q", s)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	return []string{
		"version",
		"server.url",
		"server.timeout_secs",
		"server.requests_per_second",
		"server.burst",
		"chat.history_turns",
		"chat.streaming",
		"chat.cursor_blink_ms",
		"ui.word_wrap",
		"ui.style",
		"ui.show_tool_cards",
		"log.level",
		"log.format",
		"log.file",
		"storage.enabled",
		"storage.path",
		"storage.max_sessions",
	}
}

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
