// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Chat.Language != "en" {
		t.Errorf("default language = %q, want en", cfg.Chat.Language)
	}
	if !cfg.Storage.Enabled {
		t.Error("history should be enabled by default")
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("default theme = %q, want dark", cfg.UI.Theme)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Chat.Language != "en" {
		t.Errorf("language = %q, want default en", cfg.Chat.Language)
	}
}

func TestLoadFromPath_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[platform]
base_url = "https://api.example.com/v1"
api_token = "tok_123"

[chat]
language = "de"
temperature = 0.8
max_tokens = 512

[storage]
enabled = false

[ui]
theme = "light"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Platform.BaseURL != "https://api.example.com/v1" {
		t.Errorf("base_url = %q", cfg.Platform.BaseURL)
	}
	if !cfg.Authenticated() {
		t.Error("Authenticated() should be true with a token")
	}
	if cfg.Chat.Language != "de" {
		t.Errorf("language = %q, want de", cfg.Chat.Language)
	}
	if cfg.Chat.Temperature != 0.8 {
		t.Errorf("temperature = %g, want 0.8", cfg.Chat.Temperature)
	}
	if cfg.Storage.Enabled {
		t.Error("storage should be disabled")
	}
}

func TestLoadFromPath_FixesPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("version = \"1.0.0\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROLEPLAY_BASE_URL", "https://alt.example.com")
	t.Setenv("ROLEPLAY_API_TOKEN", "tok_env")
	t.Setenv("ROLEPLAY_LANGUAGE", "fr")
	t.Setenv("ROLEPLAY_NO_HISTORY", "1")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Platform.BaseURL != "https://alt.example.com" {
		t.Errorf("base_url = %q", cfg.Platform.BaseURL)
	}
	if cfg.Platform.APIToken != "tok_env" {
		t.Errorf("api_token = %q", cfg.Platform.APIToken)
	}
	if cfg.Chat.Language != "fr" {
		t.Errorf("language = %q", cfg.Chat.Language)
	}
	if cfg.Storage.Enabled {
		t.Error("ROLEPLAY_NO_HISTORY should disable history")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url", func(c *Config) { c.Platform.BaseURL = "not a url" }, "platform.base_url"},
		{"bad language", func(c *Config) { c.Chat.Language = "english" }, "chat.language"},
		{"temperature too high", func(c *Config) { c.Chat.Temperature = 3 }, "chat.temperature"},
		{"top_p out of range", func(c *Config) { c.Chat.TopP = 1.5 }, "chat.top_p"},
		{"negative max tokens", func(c *Config) { c.Chat.MaxTokens = -1 }, "chat.max_tokens"},
		{"penalty out of range", func(c *Config) { c.Chat.PresencePenalty = 2.5 }, "chat.presence_penalty"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var errs ValidateErrors
			if !errors.As(err, &errs) {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			if !strings.Contains(errs.Error(), tt.field) {
				t.Errorf("error %q does not mention field %s", errs.Error(), tt.field)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Platform.BaseURL = "https://api.example.com/v1"
	cfg.Platform.AnonSessionID = "anon_abc"
	cfg.Chat.Language = "ja"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Platform.AnonSessionID != "anon_abc" {
		t.Errorf("anon_session_id = %q", loaded.Platform.AnonSessionID)
	}
	if loaded.Chat.Language != "ja" {
		t.Errorf("language = %q, want ja", loaded.Chat.Language)
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Platform.APIToken = "tok_secret"
	cfg.Platform.AnonSessionID = "anon_secret"

	s := cfg.String()
	if strings.Contains(s, "tok_secret") || strings.Contains(s, "anon_secret") {
		t.Errorf("String() leaks secrets: %s", s)
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Errorf("String() should redact, got: %s", s)
	}
}
