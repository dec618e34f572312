// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, k := range []string{"MCPCHAT_SERVER_URL", "MCPCHAT_HISTORY_TURNS", "MCPCHAT_LOG_LEVEL", "MCPCHAT_NO_STREAM"} {
		t.Setenv(k, "")
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Server.URL != "http://127.0.0.1:8000" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Chat.HistoryTurns != 5 {
		t.Errorf("Chat.HistoryTurns = %d, want 5", cfg.Chat.HistoryTurns)
	}
	if !cfg.Chat.Streaming {
		t.Error("streaming should default to on")
	}
	if cfg.BlinkInterval() != 500*time.Millisecond {
		t.Errorf("BlinkInterval = %v", cfg.BlinkInterval())
	}
	if cfg.Timeout() != 120*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, "", false},
		{"relative url", func(c *Config) { c.Server.URL = "localhost:8000" }, "server.url", true},
		{"ftp url", func(c *Config) { c.Server.URL = "ftp://host" }, "server.url", true},
		{"https url", func(c *Config) { c.Server.URL = "https://chat.example.com" }, "", false},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSecs = 0 }, "server.timeout_secs", true},
		{"negative rate", func(c *Config) { c.Server.RequestsPerSecond = -1 }, "server.requests_per_second", true},
		{"zero burst with rate", func(c *Config) { c.Server.Burst = 0 }, "server.burst", true},
		{"zero burst unlimited", func(c *Config) { c.Server.RequestsPerSecond = 0; c.Server.Burst = 0 }, "", false},
		{"history turns negative", func(c *Config) { c.Chat.HistoryTurns = -1 }, "chat.history_turns", true},
		{"history turns zero", func(c *Config) { c.Chat.HistoryTurns = 0 }, "", false},
		{"history turns too many", func(c *Config) { c.Chat.HistoryTurns = 51 }, "chat.history_turns", true},
		{"blink too fast", func(c *Config) { c.Chat.CursorBlinkMS = 10 }, "chat.cursor_blink_ms", true},
		{"word wrap negative", func(c *Config) { c.UI.WordWrap = -5 }, "ui.word_wrap", true},
		{"unknown style", func(c *Config) { c.UI.Style = "neon" }, "ui.style", true},
		{"style case insensitive", func(c *Config) { c.UI.Style = "Dark" }, "", false},
		{"unknown level", func(c *Config) { c.Log.Level = "verbose" }, "log.level", true},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, "log.format", true},
		{"negative max sessions", func(c *Config) { c.Storage.MaxSessions = -1 }, "storage.max_sessions", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error is %T, want ValidateErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

func TestValidateErrors_Joins(t *testing.T) {
	c := Default()
	c.Server.TimeoutSecs = 0
	c.Log.Level = "loud"
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "server.timeout_secs") || !strings.Contains(msg, "log.level") {
		t.Errorf("error %q should name both fields", msg)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("server.url")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "http://127.0.0.1:8000" {
		t.Errorf("Get('server.url') = %v", val)
	}

	if err := cfg.Set("chat.history_turns", "8"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Chat.HistoryTurns != 8 {
		t.Errorf("HistoryTurns = %d, want 8", cfg.Chat.HistoryTurns)
	}

	if err := cfg.Set("chat.streaming", "off"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Chat.Streaming {
		t.Error("streaming should be off")
	}

	if err := cfg.Set("server.requests_per_second", "2.5"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Server.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v", cfg.Server.RequestsPerSecond)
	}

	if err := cfg.Set("chat.cursor_blink_ms", 250); err != nil {
		t.Fatalf("Set() with int error = %v", err)
	}
	if cfg.Chat.CursorBlinkMS != 250 {
		t.Errorf("CursorBlinkMS = %d", cfg.Chat.CursorBlinkMS)
	}

	errCases := []struct {
		key   string
		value interface{}
	}{
		{"invalid.key", "x"},
		{"server", "x"},
		{"server.url.host", "x"},
		{"chat.history_turns", "many"},
		{"chat.streaming", "maybe"},
		{"", "x"},
	}
	for _, ec := range errCases {
		if err := cfg.Set(ec.key, ec.value); err == nil {
			t.Errorf("Set(%q, %v) should fail", ec.key, ec.value)
		}
	}
}

func TestConfig_KeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q): %v", key, err)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MCPCHAT_SERVER_URL", "http://10.0.0.2:9000")
	t.Setenv("MCPCHAT_HISTORY_TURNS", "2")
	t.Setenv("MCPCHAT_LOG_LEVEL", "debug")
	t.Setenv("MCPCHAT_NO_STREAM", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Server.URL != "http://10.0.0.2:9000" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Chat.HistoryTurns != 2 {
		t.Errorf("HistoryTurns = %d", cfg.Chat.HistoryTurns)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Chat.Streaming {
		t.Error("MCPCHAT_NO_STREAM should disable streaming")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.URL != Default().Server.URL {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Server.URL = "http://chat.internal:8080/"
	cfg.Chat.HistoryTurns = 9
	cfg.Chat.Streaming = false
	cfg.UI.Style = "light"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# mcpchat configuration file") {
		t.Error("missing header comment")
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Trailing slash is trimmed by SetDefaults.
	if loaded.Server.URL != "http://chat.internal:8080" {
		t.Errorf("Server.URL = %q", loaded.Server.URL)
	}
	if loaded.Chat.HistoryTurns != 9 || loaded.Chat.Streaming {
		t.Errorf("Chat = %+v", loaded.Chat)
	}
	if loaded.UI.Style != "light" {
		t.Errorf("UI.Style = %q", loaded.UI.Style)
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "partial.toml")
	content := "[chat]\nhistory_turns = 3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Chat.HistoryTurns != 3 {
		t.Errorf("HistoryTurns = %d", cfg.Chat.HistoryTurns)
	}
	if !cfg.Chat.Streaming {
		t.Error("unset streaming should keep its default")
	}
	if cfg.Server.URL != Default().Server.URL {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[chat\nhistory_turns = 3", "failed to load config"},
		{"unknown key", "[chat]\nhistroy_turns = 3\n", "unknown keys"},
		{"invalid value", "[chat]\nhistory_turns = 99\n", "chat.history_turns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFromPath(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestArchivePath(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	path, err := cfg.ArchivePath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "history.db") {
		t.Errorf("ArchivePath = %q", path)
	}

	cfg.Storage.Path = "/tmp/custom.db"
	path, _ = cfg.ArchivePath()
	if path != "/tmp/custom.db" {
		t.Errorf("ArchivePath = %q", path)
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()
	clone.Server.URL = "http://other:1"
	clone.Chat.HistoryTurns = 1

	if original.Server.URL == clone.Server.URL {
		t.Error("modifying clone should not affect original")
	}
	if original.Chat.HistoryTurns != 5 {
		t.Errorf("original HistoryTurns = %d", original.Chat.HistoryTurns)
	}
}

func TestConfig_StringIsTOML(t *testing.T) {
	s := Default().String()
	for _, want := range []string{"[server]", "[chat]", "history_turns = 5"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}
}

func TestLoadFile_IgnoresEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nurl = \"http://file:1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MCPCHAT_SERVER_URL", "http://env:2")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.URL != "http://file:1" {
		t.Errorf("Server.URL = %q, want file value", cfg.Server.URL)
	}

	missing, err := LoadFile(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("LoadFile(missing) error = %v", err)
	}
	if missing.Server.URL != Default().Server.URL {
		t.Errorf("missing file should give defaults")
	}
}
