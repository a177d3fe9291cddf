// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/roleplay-tui/internal/model"
	"github.com/jeranaias/roleplay-tui/internal/storage"
	"github.com/jeranaias/roleplay-tui/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Chat bundles a stored chat's metadata with its messages for export.
type Chat struct {
	Meta     storage.ChatMeta
	Messages []model.Message
}

// Exporter renders a chat in one output format.
type Exporter interface {
	// Export renders the chat and returns the file content.
	Export(chat *Chat) ([]byte, error)

	// FileExtension returns the extension for the format (e.g. ".md").
	FileExtension() string

	// MimeType returns the MIME type of the format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where WriteFile places exports.
	// Default: current working directory.
	OutputDir string

	// IncludeMetadata adds a header with chat title, dates, and counts.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// =============================================================================
// FORMAT DISPATCH
// =============================================================================

// New returns the exporter for a format name.
func New(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteFile exports a chat to a file in opts.OutputDir and returns the
// written path. The filename derives from the chat title.
func WriteFile(chat *Chat, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(chat)
	if err != nil {
		return "", err
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, exportFilename(chat)+exporter.FileExtension())
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// exportFilename builds a filesystem-safe name from the chat title,
// falling back to the chat id.
func exportFilename(chat *Chat) string {
	name := chat.Meta.Title
	if name == "" {
		name = chat.Meta.ID
	}
	name = util.TruncateRunesNoEllipsis(name, 40)

	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	safe := strings.Trim(b.String(), "-")
	if safe == "" {
		safe = "chat"
	}
	return "chat-" + safe
}
