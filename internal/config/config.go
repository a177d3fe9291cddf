// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/roleplay-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete roleplay client configuration.
type Config struct {
	Version string `toml:"version"`

	// Platform contains connection and identity settings.
	Platform PlatformConfig `toml:"platform"`

	// Chat contains language and generation parameters sent with every
	// stream request.
	Chat ChatConfig `toml:"chat"`

	// Storage contains local transcript history settings.
	Storage StorageConfig `toml:"storage"`

	// UI contains presentation settings.
	UI UIConfig `toml:"ui"`
}

// PlatformConfig contains backend connection settings.
type PlatformConfig struct {
	// BaseURL is the platform API root, e.g. "https://api.example.com/v1".
	BaseURL string `toml:"base_url"`
	// APIToken authenticates a registered account. Mutually exclusive with
	// AnonSessionID; when both are set the token wins.
	APIToken string `toml:"api_token"`
	// AnonSessionID identifies an anonymous session. Generated on first run
	// when no token is configured.
	AnonSessionID string `toml:"anon_session_id"`
}

// ChatConfig contains per-request generation settings.
type ChatConfig struct {
	// Language is the ISO 639-1 reply language hint, e.g. "en".
	Language string `toml:"language"`
	// Model pins a generation backend; empty lets the server choose.
	Model string `toml:"model"`

	Temperature      float64 `toml:"temperature"`
	TopP             float64 `toml:"top_p"`
	TopK             int     `toml:"top_k"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	PresencePenalty  float64 `toml:"presence_penalty"`
	// MaxTokens caps reply length; 0 uses the server default.
	MaxTokens int `toml:"max_tokens"`
	// ContextLimit caps how much history the server feeds the model.
	ContextLimit int `toml:"context_limit"`
}

// StorageConfig contains local history settings.
type StorageConfig struct {
	// Enabled controls whether transcripts are saved locally.
	Enabled bool `toml:"enabled"`
	// Path is the history database location (empty = ~/.roleplay/history.db).
	Path string `toml:"path"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowModel displays the generation backend under each reply.
	ShowModel bool `toml:"show_model"`
	// CompactMode uses a more compact layout
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Platform: PlatformConfig{
			BaseURL: "",
		},

		Chat: ChatConfig{
			Language:    "en",
			Temperature: 0,
			MaxTokens:   0, // server default
		},

		Storage: StorageConfig{
			Enabled: true,
		},

		UI: UIConfig{
			Theme:     "dark",
			ShowModel: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the roleplay configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".roleplay"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath returns the transcript database path, honoring the configured
// override.
func (c *Config) HistoryPath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions fixes permissions on the config file. The file
// holds the API token, so anything other than 0600 gets tightened.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.roleplay/config.toml, falling back to
// defaults when the file does not exist. Environment overrides are applied
// last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
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
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with 0600 permissions,
// atomically so a crash never leaves a truncated config behind.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# roleplay configuration file")
	fmt.Fprintln(&buf, "# Generated by roleplay - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Platform.BaseURL != "" {
		u, err := url.Parse(c.Platform.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "platform.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Platform.BaseURL),
			})
		}
	}

	if lang := c.Chat.Language; lang != "" && len(lang) != 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.language",
			Message: fmt.Sprintf("must be a two-letter ISO 639-1 code, got '%s'", lang),
		})
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.temperature",
			Message: fmt.Sprintf("must be between 0.0 and 2.0, got %g", c.Chat.Temperature),
		})
	}
	if c.Chat.TopP < 0 || c.Chat.TopP > 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.top_p",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %g", c.Chat.TopP),
		})
	}
	if c.Chat.TopK < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.top_k",
			Message: "must be non-negative",
		})
	}
	if p := c.Chat.FrequencyPenalty; p < -2 || p > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.frequency_penalty",
			Message: fmt.Sprintf("must be between -2.0 and 2.0, got %g", p),
		})
	}
	if p := c.Chat.PresencePenalty; p < -2 || p > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.presence_penalty",
			Message: fmt.Sprintf("must be between -2.0 and 2.0, got %g", p),
		})
	}
	if c.Chat.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_tokens",
			Message: "must be non-negative",
		})
	}
	if c.Chat.ContextLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.context_limit",
			Message: "must be non-negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in missing values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Chat.Language == "" {
		c.Chat.Language = defaults.Chat.Language
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ROLEPLAY_BASE_URL: overrides platform.base_url
//   - ROLEPLAY_API_TOKEN: overrides platform.api_token
//   - ROLEPLAY_ANON_SESSION: overrides platform.anon_session_id
//   - ROLEPLAY_LANGUAGE: overrides chat.language
//   - ROLEPLAY_MODEL: overrides chat.model
//   - ROLEPLAY_NO_HISTORY: set to "1" or "true" to disable local history
func (c *Config) ApplyEnvOverrides() {
	if base := os.Getenv("ROLEPLAY_BASE_URL"); base != "" {
		c.Platform.BaseURL = base
	}
	if token := os.Getenv("ROLEPLAY_API_TOKEN"); token != "" {
		c.Platform.APIToken = token
	}
	if session := os.Getenv("ROLEPLAY_ANON_SESSION"); session != "" {
		c.Platform.AnonSessionID = session
	}
	if lang := os.Getenv("ROLEPLAY_LANGUAGE"); lang != "" {
		c.Chat.Language = lang
	}
	if model := os.Getenv("ROLEPLAY_MODEL"); model != "" {
		c.Chat.Model = model
	}
	if noHist := os.Getenv("ROLEPLAY_NO_HISTORY"); noHist != "" {
		if noHist == "1" || strings.ToLower(noHist) == "true" {
			c.Storage.Enabled = false
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Authenticated reports whether an API token is configured.
func (c *Config) Authenticated() bool {
	return c.Platform.APIToken != ""
}

// String returns a string representation for debugging with the API token
// and session id redacted, so the config never leaks secrets into logs.
func (c *Config) String() string {
	safe := *c
	if safe.Platform.APIToken != "" {
		safe.Platform.APIToken = "[REDACTED]"
	}
	if safe.Platform.AnonSessionID != "" {
		safe.Platform.AnonSessionID = "[REDACTED]"
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
